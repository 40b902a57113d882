package track

// Default is opening of the cabinet demo tune, one lyric syllable per note.
var Default = Table{
	{NoteA, OctaveA7, DurationQuarter, 100, "SA"},
	{NoteA, OctaveA7, DurationQuarter, 100, "KU"},
	{NoteB, OctaveA7, DurationHalf, 200, "RA"},
	{NoteA, OctaveA7, DurationQuarter, 100, "SA"},
	{NoteA, OctaveA7, DurationQuarter, 100, "KU"},
	{NoteB, OctaveA7, DurationHalf, 200, "RA"},
	{NoteA, OctaveA7, DurationQuarter, 100, "YA"},
	{NoteB, OctaveA7, DurationQuarter, 100, "YO"},
	{NoteC, OctaveA7, DurationQuarter, 100, "I"},
	{NoteB, OctaveA7, DurationQuarter, 100, "NO"},
	{NoteA, OctaveA7, DurationQuarter, 100, "SO"},
	{NoteB, OctaveA7, DurationQuarter, 50, "RA"},
	{NoteA, OctaveA7, DurationQuarter, 50, ""},
	{NoteF, OctaveA7, DurationHalf, 200, "WA"},
}
