package status

// Status display layout constants.
// These values define the panel layout and MUST NOT be configurable.

// ---- PANEL GEOMETRY ----

// Columns is the character width of one display row.
const Columns = 16

// RowTitle is the row holding the title label.
const RowTitle = 0

// RowStatus is the row holding the bitmap and the current message.
const RowStatus = 1

// ---- BITMAP ----

// FlagCount is the number of check flags shown in the bitmap.
const FlagCount = 3

// FlagSet marks a passed check.
const FlagSet = 'X'

// FlagUnset marks a pending or failed check.
const FlagUnset = '-'

// ---- MESSAGE ----

// MessageWidth is the space left for the message after "XXX ".
const MessageWidth = Columns - FlagCount - 1
