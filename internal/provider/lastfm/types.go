package lastfm

// Last.fm API response types.

// TagInfoResponse is the top-level response from tag.getinfo.
type TagInfoResponse struct {
	Tag     TagInfo `json:"tag"`
	Error   int     `json:"error,omitempty"`
	Message string  `json:"message,omitempty"`
}

// TagInfo is the tag payload from tag.getinfo.
type TagInfo struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
	Reach int    `json:"reach"`
	Wiki  Wiki   `json:"wiki"`
}

// Wiki holds the tag description.
type Wiki struct {
	Summary string `json:"summary"`
	Content string `json:"content"`
}

// errTagNotFound is the Last.fm error code for an unknown tag or artist.
const errTagNotFound = 6
