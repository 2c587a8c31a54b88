package spamguard

// DecoyField is the name of the form field genuine clients never fill in.
const DecoyField = "website"

// Triggered reports whether the decoy field arrived with any content at all.
// Whitespace counts as content; real browsers submit the hidden field empty.
func Triggered(decoy string) bool {
	return len(decoy) > 0
}
