// scraper/latest.go
package scraper

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/feedmill/gdeltflow/models"
)

// LatestPublication resolves the newest published slot per table. The
// primary source is the publisher's lastupdate.txt (one line per table:
// size, hash, URL). If that file is unreachable or malformed the publisher's
// HTML file index is scraped instead.
func (d *Downloader) LatestPublication(ctx context.Context, lastUpdateURL string) (map[models.Table]time.Time, error) {
	latest, err := d.latestFromLastUpdate(ctx, lastUpdateURL)
	if err == nil {
		return latest, nil
	}
	log.Printf("WARN Scraper: lastupdate.txt unavailable (%v), falling back to file index scrape", err)

	latest, scrapeErr := d.latestFromIndexPage(ctx)
	if scrapeErr != nil {
		return nil, &models.FetchError{Name: "lastupdate.txt", Err: fmt.Errorf("lastupdate failed (%v) and index scrape failed: %w", err, scrapeErr)}
	}
	return latest, nil
}

func (d *Downloader) latestFromLastUpdate(ctx context.Context, url string) (map[models.Table]time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d from %s", resp.StatusCode, url)
	}

	latest := make(map[models.Table]time.Time, 3)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		fileURL := fields[len(fields)-1]
		name := fileURL[strings.LastIndex(fileURL, "/")+1:]
		table, err := TableForFile(name)
		if err != nil {
			continue
		}
		ts, err := TimestampForFile(name)
		if err != nil {
			return nil, fmt.Errorf("malformed lastupdate entry %q: %w", name, err)
		}
		latest[table] = ts
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return nil, fmt.Errorf("no table entries found in %s", url)
	}
	return latest, nil
}

// latestFromIndexPage scrapes the publisher's HTML directory listing for the
// newest file name per table.
func (d *Downloader) latestFromIndexPage(ctx context.Context) (map[models.Table]time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URLBase, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d from %s", resp.StatusCode, d.URLBase)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML file index: %w", err)
	}

	latest := make(map[models.Table]time.Time, 3)
	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		name := href[strings.LastIndex(href, "/")+1:]
		if !strings.HasSuffix(name, ".zip") {
			return
		}
		table, err := TableForFile(name)
		if err != nil {
			return
		}
		ts, err := TimestampForFile(name)
		if err != nil {
			return
		}
		if ts.After(latest[table]) {
			latest[table] = ts
		}
	})
	if len(latest) == 0 {
		return nil, fmt.Errorf("no publication links found at %s", d.URLBase)
	}
	return latest, nil
}
