// Package checklist converts between day note content and the checklist
// model.
//
// A checklist is stored as one HTML list inside the note:
//
//	<ul class="checklist" data-next-id="4" data-carried-from="2026-10-16">
//	<li data-id="1" data-done="false">Buy milk</li>
//	<li data-id="3" data-done="true">Pay bill</li>
//	</ul>
//
// Item order is position order. data-next-id is the next id to assign so
// that deleted ids are never handed out again. data-carried-from lists the
// dates whose unfinished items were already rolled into this note.
//
// Content around the list is kept as opaque bytes and written back
// unchanged. A note without a checklist list decodes to an empty checklist.
package checklist
