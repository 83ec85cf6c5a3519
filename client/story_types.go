package client

// OverlayGeometry places an interactive overlay on a story frame. X and Y
// are the normalized center of the overlay, Width and Height its normalized
// extent, Rotation in degrees. Values are taken as given, without clamping.
type OverlayGeometry struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// StoryMention tags a user on the story.
type StoryMention struct {
	OverlayGeometry
	UserID int64 `json:"user_id"`
}

// StoryHashtag places a tappable hashtag sticker. Name carries the tag
// without the leading '#'.
type StoryHashtag struct {
	OverlayGeometry
	Name string `json:"name"`
}

// StoryLocation places a tappable place sticker. Only Location.Pk is
// required; the rest is resolved before configuring.
type StoryLocation struct {
	OverlayGeometry
	Location Location `json:"location"`
}

// StoryLink attaches a swipe-up web link. At most one link per story is
// honored by the platform.
type StoryLink struct {
	OverlayGeometry
	WebURI string `json:"web_uri"`
}

// StorySticker places a generic sticker. Type defaults to "gif". ID, when
// set, names the concrete sticker asset and is registered with the platform.
// Extra fields are merged into the emitted tap model.
type StorySticker struct {
	OverlayGeometry
	ID    string         `json:"id,omitempty"`
	Type  string         `json:"type"`
	Extra map[string]any `json:"extra,omitempty"`
}

// StoryMedia reshares an existing post as a sticker. MediaPK is required;
// UserID is the owner of the reshared post.
type StoryMedia struct {
	OverlayGeometry
	MediaPK int64 `json:"media_pk"`
	UserID  int64 `json:"user_id,omitempty"`
}

// StoryPoll places an interactive poll sticker.
type StoryPoll struct {
	OverlayGeometry
	Question string   `json:"question"`
	Options  []string `json:"options"`
	// Color of the sticker, e.g. "black". Empty means the platform default.
	Color string `json:"color,omitempty"`
	// PollType defaults to "story_poll", Type to "polling".
	PollType       string         `json:"poll_type,omitempty"`
	Type           string         `json:"type,omitempty"`
	IsMultiOption  bool           `json:"is_multi_option_poll"`
	IsSharedResult bool           `json:"is_shared_result"`
	ViewerCanVote  bool           `json:"viewer_can_vote"`
	Finished       bool           `json:"finished"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// StoryMetadata carries the overlays and extra fields of a story frame.
type StoryMetadata struct {
	Caption   string
	Mentions  []StoryMention
	Locations []StoryLocation
	Links     []StoryLink
	Hashtags  []StoryHashtag
	Stickers  []StorySticker
	Medias    []StoryMedia
	Polls     []StoryPoll
	// Extra fields are merged into the configure payload last and may
	// override any computed field.
	Extra map[string]any
	// UploadID reuses an externally generated upload session id.
	UploadID string
	// Progress receives upload progress events.
	Progress ProgressReporter
}

// Story is a published story frame together with the overlays it was
// configured with. The overlay slices echo the request metadata; the server
// does not return them.
type Story struct {
	Media
	Mentions  []StoryMention
	Locations []StoryLocation
	Links     []StoryLink
	Hashtags  []StoryHashtag
	Stickers  []StorySticker
	Medias    []StoryMedia
	Polls     []StoryPoll
}
