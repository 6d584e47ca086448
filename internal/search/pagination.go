package search

// TotalPages returns ceil(total / PageSize); zero results means zero pages.
func TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}

// clampPage keeps p inside [1, pages]. With no pages the current page is kept.
func clampPage(p, pages int) int {
	if pages <= 0 {
		return p
	}
	return min(max(p, 1), pages)
}
