package common

// PostURL is the canonical relative URL of a post.
func PostURL(slug string) string {
	return "/post/" + slug + "/"
}
