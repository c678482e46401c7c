package pix

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Fetch downloads and parses a CSV-encoded image from url.
func Fetch(ctx context.Context, client *http.Client, url string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Image{}, fmt.Errorf("image request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return Image{}, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	return ParseCSV(data)
}
