package soundcloud

// SoundCloud API response types.

// Track is one upload in a user's track list.
type Track struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Genre   string `json:"genre"`
	TagList string `json:"tag_list"`
}

// trackPage is the paginated form of /users/{id}/tracks.
type trackPage struct {
	Collection []Track `json:"collection"`
	NextHref   string  `json:"next_href"`
}

// User is a SoundCloud account.
type User struct {
	ID           int64  `json:"id"`
	Kind         string `json:"kind"`
	Username     string `json:"username"`
	Permalink    string `json:"permalink"`
	PermalinkURL string `json:"permalink_url"`
	AvatarURL    string `json:"avatar_url"`
	Description  string `json:"description"`
}
