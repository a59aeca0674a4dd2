package notification

import "regexp"

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// Render replaces every {name} in tmpl with vars[name]. Names without a
// value become the empty string.
func Render(tmpl string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		return vars[m[1:len(m)-1]]
	})
}
