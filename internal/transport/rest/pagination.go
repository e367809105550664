package rest

import (
	"strconv"
	"strings"
)

// from/size offset paging, the convention shared by the listing endpoints.
func parsePage(fromStr, sizeStr string) (from, size int) {
	from = 0
	size = 10

	if s := strings.TrimSpace(fromStr); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			from = n
		}
	}
	if s := strings.TrimSpace(sizeStr); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 {
			size = n
		}
	}
	if size > 100 {
		size = 100
	}
	return from, size
}

func parseIDList(s string) []int64 {
	var out []int64
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
