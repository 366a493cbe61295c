package soundcloud

// ResolveRequest is the body of POST /soundcloud/info and /soundcloud/download.
type ResolveRequest struct {
	URL string `json:"url"`
}

// TrackInfo describes one resolvable track.
type TrackInfo struct {
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Duration *float64 `json:"duration"`
	Uploader string   `json:"uploader"`
}

// InfoResult is the outcome of a metadata lookup: either a single track or a
// playlist of tracks.
type InfoResult struct {
	Type     string      // "track" or "playlist"
	Track    TrackInfo   // set when Type == "track"
	Playlist []TrackInfo // set when Type == "playlist"
}

// ytdlpEntry is the subset of yt-dlp's --dump-json output we consume.
type ytdlpEntry struct {
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Duration *float64 `json:"duration"`
	Uploader string   `json:"uploader"`
}
