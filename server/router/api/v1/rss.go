package v1

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"
)

// GetClustersRSS serves the current clusters as an RSS feed, one item per
// cluster, so discoveries can be followed from a feed reader.
func (s *APIV1Service) GetClustersRSS(c echo.Context) error {
	ctx := c.Request().Context()

	clusters, _, err := s.buildClusters(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build clusters").SetInternal(err)
	}

	baseURL := c.Scheme() + "://" + c.Request().Host
	feed := &feeds.Feed{
		Title:       "needscoop need clusters",
		Link:        &feeds.Link{Href: baseURL + "/api/v1/clusters"},
		Description: "Clusters of needs discovered in social posts",
		Created:     time.Now(),
	}
	for _, cluster := range clusters {
		title := fmt.Sprintf("Cluster %d (%d posts)", cluster.ID, cluster.Count)
		if len(cluster.Samples) > 0 {
			title = fmt.Sprintf("Cluster %d (%d posts): %s", cluster.ID, cluster.Count, cluster.Samples[0])
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          fmt.Sprintf("%s/api/v1/clusters#%d", baseURL, cluster.ID),
			Title:       title,
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/api/v1/posts?cluster_id=%d", baseURL, cluster.ID)},
			Description: strings.Join(cluster.Samples, "\n"),
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render feed").SetInternal(err)
	}
	return c.Blob(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}
