package mcpserver

// ActionFormatContract describes the JSON action format that LLM
// consumers must follow when proposing calendar changes.
const ActionFormatContract = `# Calendario Action Format Contract

Every proposed calendar change MUST be a JSON action of this shape.

## Structure

` + "```" + `json
{
  "type": "create",              // REQUIRED: "create" | "update" | "delete"
  "event": {
    "id": "…",                   // REQUIRED for update/delete; ignored on create
    "title": "Riunione",         // optional; defaults to "Nuovo evento" on create
    "description": "sala 3",     // optional
    "date": "2026-09-07",        // REQUIRED for create; ISO date (other ISO forms accepted)
    "startTime": "09:00",        // "HH:mm", 00:00–24:00
    "endTime": "10:30",          // must be strictly after startTime
    "color": "blue",             // optional; must match a category colour
    "category": "lavoro",        // optional; resolved to that category's colour
    "todos": [                   // optional checklist
      {"text": "prenotare sala", "completed": false}
    ]
  }
}
` + "```" + `

## Rules

1. **Batches are arrays.** Send ` + "`" + `[action, action, ...]` + "`" + `; actions apply in order.
2. **Invalid actions are skipped, not fatal.** A malformed entry never
   aborts the rest of the batch.
3. **Ids are server-assigned.** A create's generated id is NOT available
   to later actions in the same batch; fetch it first.
4. **Colour resolution:** a ` + "`" + `color` + "`" + ` matching a live category wins, then
   ` + "`" + `category` + "`" + ` by name (case-insensitive), then the first category's
   colour, then the palette default.
5. **Times** use 24-hour "HH:mm". ` + "`" + `"24:00"` + "`" + ` is a valid end of day.
   Events shorter than 5 minutes are rejected.
6. **Updates are partial.** Only fields present in the payload change;
   an unparseable ` + "`" + `date` + "`" + ` drops that field, not the action.
7. **Todos replace wholesale.** Sending ` + "`" + `todos` + "`" + ` on an update replaces
   the full checklist; omit the field to keep it.
`
