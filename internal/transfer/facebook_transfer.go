package transfer

type FacebookFeedRequest struct {
	Message       string              `json:"message,omitempty"`
	Link          string              `json:"link,omitempty"`
	AttachedMedia []FacebookMediaFbid `json:"attached_media,omitempty"`
	AccessToken   string              `json:"access_token"`
}

type FacebookMediaFbid struct {
	MediaFbid string `json:"media_fbid"`
}

type FacebookPhotoRequest struct {
	URL         string `json:"url"`
	Caption     string `json:"caption,omitempty"`
	Published   *bool  `json:"published,omitempty"`
	AccessToken string `json:"access_token"`
}

type FacebookVideoRequest struct {
	FileURL     string `json:"file_url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	AccessToken string `json:"access_token"`
}

type FacebookPostResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

type FacebookSummary struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

type FacebookPostStats struct {
	ID     string `json:"id"`
	Shares struct {
		Count int64 `json:"count"`
	} `json:"shares"`
	Reactions FacebookSummary `json:"reactions"`
	Comments  FacebookSummary `json:"comments"`
}
