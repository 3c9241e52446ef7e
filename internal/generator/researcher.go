package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"video-essay-service/internal/entity"
)

const youtubeSearchURL = "https://www.googleapis.com/youtube/v3/search"

// YouTubeResearcher queries the YouTube Data API for videos related to a
// topic and condenses their titles and descriptions into a context blob. It
// never returns an error; callers branch on the result Status.
type YouTubeResearcher struct {
	apiKey string
	client *http.Client
}

func NewYouTubeResearcher(apiKey string) *YouTubeResearcher {
	return &YouTubeResearcher{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

func (r *YouTubeResearcher) Gather(ctx context.Context, topic string, limit int) entity.ResearchResult {
	if r.apiKey == "" {
		return emptyResult(topic, entity.ResearchDisabled, "research credentials not configured")
	}
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("q", topic)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("key", r.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, youtubeSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return emptyResult(topic, entity.ResearchError, err.Error())
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return emptyResult(topic, entity.ResearchUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return emptyResult(topic, entity.ResearchError, fmt.Sprintf("search returned status %d", resp.StatusCode))
	}

	var parsed youtubeSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return emptyResult(topic, entity.ResearchError, err.Error())
	}

	var sources []entity.ResearchSource
	var segments []string
	for _, item := range parsed.Items {
		if item.ID.VideoID == "" {
			continue
		}
		src := entity.ResearchSource{
			VideoID:     item.ID.VideoID,
			Title:       item.Snippet.Title,
			Channel:     item.Snippet.ChannelTitle,
			PublishedAt: item.Snippet.PublishedAt,
			Excerpt:     item.Snippet.Description,
			URL:         "https://youtu.be/" + item.ID.VideoID,
		}
		sources = append(sources, src)
		if src.Excerpt != "" {
			segments = append(segments, fmt.Sprintf("[%s] %s", src.Title, src.Excerpt))
		}
	}

	summary := summarizeSources(sources)
	contextText := summary
	if len(segments) > 0 {
		contextText = strings.Join(append([]string{summary}, segments...), "\n")
	}

	return entity.ResearchResult{
		Topic:       topic,
		Status:      entity.ResearchOK,
		Summary:     summary,
		ContextText: contextText,
		Results:     sources,
	}
}

func summarizeSources(sources []entity.ResearchSource) string {
	if len(sources) == 0 {
		return "No related videos found."
	}
	lines := []string{"Top related videos:"}
	for _, src := range sources {
		lines = append(lines, fmt.Sprintf("- %s (%s)", src.Title, src.Channel))
	}
	return strings.Join(lines, "\n")
}

func emptyResult(topic string, status entity.ResearchStatus, message string) entity.ResearchResult {
	return entity.ResearchResult{
		Topic:   topic,
		Status:  status,
		Message: message,
	}
}
