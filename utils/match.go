package utils

// Match reports whether value matches pattern. Patterns are an exact
// string, "*" (everything), or a prefix wildcard such as "edit_*". Audit
// queries use it to select action families; SQL stores compile the same
// forms to LIKE so both paths agree.
func Match(value, pattern string) bool {
	if pattern == value || pattern == "*" {
		return true
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '*' {
			prefix := pattern[:i]
			return len(value) >= len(prefix) && value[:len(prefix)] == prefix
		}
	}
	return false
}
