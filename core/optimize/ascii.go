package optimize

// lower maps every byte to its ASCII lower-case form.
var lower [256]byte

func init() {
	for i := range lower {
		lower[i] = byte(i)
	}
	for c := 'A'; c <= 'Z'; c++ {
		lower[c] = byte(c) + 'a' - 'A'
	}
}

// EqualFold compares two ASCII strings ignoring case. Unlike strings.EqualFold
// it does no Unicode folding, which is what header names need.
func EqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lower[a[i]] != lower[b[i]] {
			return false
		}
	}
	return true
}
