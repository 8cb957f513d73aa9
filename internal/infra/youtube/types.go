package youtube

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// flexCount decodes the API's count fields, which arrive as JSON strings
// ("subscriberCount": "12345") but occasionally as bare numbers.
type flexCount int64

func (f *flexCount) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parse count %q: %w", data, err)
	}
	*f = flexCount(n)
	return nil
}

type channelListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount flexCount `json:"subscriberCount"`
			ViewCount       flexCount `json:"viewCount"`
			VideoCount      flexCount `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type commentThreadListResponse struct {
	Items []struct {
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					AuthorDisplayName string    `json:"authorDisplayName"`
					TextDisplay       string    `json:"textDisplay"`
					LikeCount         int64     `json:"likeCount"`
					PublishedAt       time.Time `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    flexCount `json:"viewCount"`
			LikeCount    flexCount `json:"likeCount"`
			CommentCount flexCount `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}
