package qb

// ExtractParams returns the @name placeholders of query in order of appearance.
// Duplicates are kept. A name is a run of ASCII letters, digits and underscores
// following '@'; a bare '@' yields nothing and a second '@' restarts the name.
// A name running up to the end of query is included.
func ExtractParams(query string) []string {
	var names []string

	scanParams(query, func(_, _ int, name string) {
		names = append(names, name)
	})

	return names
}

// scanParams calls emit for every placeholder with the byte range of the whole
// token, '@' included.
func scanParams(query string, emit func(start, end int, name string)) {
	inTag := false
	start := 0

	for i := 0; i < len(query); i++ {
		c := query[i]

		if c == '@' {
			inTag = true
			start = i

			continue
		}

		if !inTag || isNameByte(c) {
			continue
		}

		if i > start+1 {
			emit(start, i, query[start+1:i])
		}

		inTag = false
	}

	if inTag && len(query) > start+1 {
		emit(start, len(query), query[start+1:])
	}
}

func isNameByte(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_'
}

// distinctParams returns the names of query in order of first appearance.
func distinctParams(query string) []string {
	names := ExtractParams(query)
	seen := make(map[string]struct{}, len(names))
	out := names[:0]

	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}

		seen[n] = struct{}{}

		out = append(out, n)
	}

	return out
}
