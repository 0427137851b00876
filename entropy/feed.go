package entropy

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/veridraw/veridraw/config"
)

// Network sources are best-effort: every fetch is bounded by the
// configured timeout and any transport or parsing error is returned as a
// failure result, never propagated as a job failure.

var (
	newsFeedURL   config.StringOption
	weatherURLs   config.StringArrayOption
	imageryURLs   config.StringArrayOption
	maxFetchBytes = int64(4 << 20)
)

func init() {
	mustRegister := func(option *config.Option) {
		if err := config.Register(option); err != nil {
			panic(err)
		}
	}

	mustRegister(&config.Option{
		Name:         "News Feed URL",
		Key:          "entropy/news_feed_url",
		Description:  "JSON feed of news headlines used as a diversity entropy source.",
		OptType:      config.OptTypeString,
		DefaultValue: "https://feeds.bbci.co.uk/news/world/rss.xml?format=json",
	})
	newsFeedURL = config.GetAsString("entropy/news_feed_url", "")

	mustRegister(&config.Option{
		Name:        "Weather Aggregate URLs",
		Key:         "entropy/weather_urls",
		Description: "Open-Meteo style endpoints, one per region, polled for current weather aggregates.",
		OptType:     config.OptTypeStringArray,
		DefaultValue: []string{
			"https://api.open-meteo.com/v1/forecast?latitude=52.52&longitude=13.41&current_weather=true",
			"https://api.open-meteo.com/v1/forecast?latitude=35.68&longitude=139.69&current_weather=true",
			"https://api.open-meteo.com/v1/forecast?latitude=-33.87&longitude=151.21&current_weather=true",
			"https://api.open-meteo.com/v1/forecast?latitude=40.71&longitude=-74.01&current_weather=true",
		},
	})
	weatherURLs = config.GetAsStringArray("entropy/weather_urls", nil)

	mustRegister(&config.Option{
		Name:        "Imagery Snapshot URLs",
		Key:         "entropy/imagery_urls",
		Description: "Satellite or webcam snapshot URLs whose image bytes are folded into the entropy pool.",
		OptType:     config.OptTypeStringArray,
		DefaultValue: []string{
			"https://services.swpc.noaa.gov/images/animations/suvi/primary/304/latest.png",
		},
	})
	imageryURLs = config.GetAsStringArray("entropy/imagery_urls", nil)

	registerSource(&newsSource{})
	registerSource(&weatherSource{})
	registerSource(&imagerySource{})
}

func fetchURL(ctx context.Context, url string) ([]byte, http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(sourceTimeout())*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", "veridraw")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, nil, err
	}
	return body, resp.Header, nil
}

// newsSource hashes the identifying fields of current news items. The feed
// content changes constantly and is outside of local control, which is the
// whole point of the source.
type newsSource struct{}

func (s *newsSource) Name() string {
	return "news"
}

func (s *newsSource) Local() bool {
	return false
}

func (s *newsSource) Fetch(ctx context.Context) ([]byte, error) {
	body, _, err := fetchURL(ctx, newsFeedURL())
	if err != nil {
		return nil, err
	}

	items := gjson.GetBytes(body, "items")
	if !items.Exists() {
		// fall back to hashing the whole document
		sum := sha256.Sum256(body)
		return sum[:], nil
	}

	payload := make([]byte, 0, 32*8)
	count := 0
	items.ForEach(func(_, item gjson.Result) bool {
		entry := item.Get("source").String() + "|" +
			item.Get("title").String() + "|" +
			item.Get("author").String() + "|" +
			item.Get("date_published").String() + "|" +
			item.Get("url").String()
		sum := sha256.Sum256([]byte(entry))
		payload = append(payload, sum[:]...)

		count++
		return count < 8
	})

	if len(payload) == 0 {
		return nil, fmt.Errorf("news feed contained no items")
	}
	return payload, nil
}

// weatherSource hashes current weather aggregates, one block per region.
type weatherSource struct{}

func (s *weatherSource) Name() string {
	return "weather"
}

func (s *weatherSource) Local() bool {
	return false
}

func (s *weatherSource) Fetch(ctx context.Context) ([]byte, error) {
	urls := weatherURLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("no weather endpoints configured")
	}

	payload := make([]byte, 0, 32*len(urls))
	for _, url := range urls {
		body, _, err := fetchURL(ctx, url)
		if err != nil {
			return nil, err
		}

		current := gjson.GetBytes(body, "current_weather")
		if !current.Exists() {
			return nil, fmt.Errorf("no current_weather in response from %s", url)
		}
		entry := fmt.Sprintf(
			"%s|%s|%s|%s",
			current.Get("temperature").Raw,
			current.Get("windspeed").Raw,
			current.Get("winddirection").Raw,
			current.Get("time").Raw,
		)
		sum := sha256.Sum256([]byte(entry))
		payload = append(payload, sum[:]...)
	}
	return payload, nil
}

// imagerySource hashes snapshot bytes mixed with their HTTP metadata.
type imagerySource struct{}

func (s *imagerySource) Name() string {
	return "imagery"
}

func (s *imagerySource) Local() bool {
	return false
}

func (s *imagerySource) Fetch(ctx context.Context) ([]byte, error) {
	urls := imageryURLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("no imagery endpoints configured")
	}

	payload := make([]byte, 0, 32*len(urls))
	for _, url := range urls {
		body, header, err := fetchURL(ctx, url)
		if err != nil {
			return nil, err
		}

		h := sha256.New()
		h.Write([]byte(url))
		h.Write([]byte(header.Get("Last-Modified") + "|" + header.Get("Etag")))
		h.Write(body)
		payload = h.Sum(payload)
	}
	return payload, nil
}
