package transfer

type OpenSubtitlesLogin struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type OpenSubtitlesToken struct {
	Token  string `json:"token"`
	Status int    `json:"status"`
}

type OpenSubtitlesSearchResponse struct {
	TotalCount int                   `json:"total_count"`
	Data       []OpenSubtitlesResult `json:"data"`
}

type OpenSubtitlesResult struct {
	ID         string `json:"id"`
	Attributes struct {
		Language       string  `json:"language"`
		DownloadCount  int     `json:"download_count"`
		Ratings        float64 `json:"ratings"`
		FeatureDetails struct {
			MovieName     string `json:"movie_name"`
			Title         string `json:"title"`
			Year          int    `json:"year"`
			SeasonNumber  int    `json:"season_number"`
			EpisodeNumber int    `json:"episode_number"`
		} `json:"feature_details"`
		Files []struct {
			FileID   int64  `json:"file_id"`
			FileName string `json:"file_name"`
		} `json:"files"`
	} `json:"attributes"`
}

type OpenSubtitlesDownloadRequest struct {
	FileID int64 `json:"file_id"`
}

type OpenSubtitlesDownloadResponse struct {
	Link      string `json:"link"`
	FileName  string `json:"file_name"`
	Remaining int    `json:"remaining"`
	Message   string `json:"message"`
}
