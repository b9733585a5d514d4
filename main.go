package main

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/maptile"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Println("Usage: go run main.go <latitude> <longitude>")
		return
	}

	lat, err := strconv.ParseFloat(os.Args[1], 64)
	if err != nil {
		fmt.Printf("Invalid latitude: %v\n", err)
		return
	}
	lon, err := strconv.ParseFloat(os.Args[2], 64)
	if err != nil {
		fmt.Printf("Invalid longitude: %v\n", err)
		return
	}

	fmt.Printf("Checking Mapillary coverage for %.5f, %.5f\n", lat, lon)

	tile := maptile.At(orb.Point{lon, lat}, 14)
	fmt.Printf("Point falls in tile z=%d x=%d y=%d\n", tile.Z, tile.X, tile.Y)

	// You'll need to get this from https://www.mapillary.com/dashboard/developers
	accessToken := "YOUR_ACCESS_TOKEN"
	if env := os.Getenv("MAPILLARY_ACCESS_TOKEN"); env != "" {
		accessToken = env
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	fmt.Println("Fetching vector tile...")
	count, err := countImages(client, tile, accessToken)
	if err != nil {
		fmt.Printf("Error checking coverage: %v\n", err)
		return
	}

	if count > 0 {
		fmt.Printf("COVERED: tile %d/%d/%d has %d image features\n", tile.Z, tile.X, tile.Y, count)
	} else {
		fmt.Printf("UNCOVERED: tile %d/%d/%d has no imagery\n", tile.Z, tile.X, tile.Y)
	}
}

func countImages(client *http.Client, tile maptile.Tile, accessToken string) (int, error) {
	maxRetries := 3
	retryDelay := time.Second * 2

	endpoint := fmt.Sprintf("https://tiles.mapillary.com/maps/vtp/mly1_public/2/%d/%d/%d?access_token=%s",
		tile.Z, tile.X, tile.Y, accessToken)
	fmt.Printf("Fetching tile from: %s\n", endpoint)

	for i := 0; i < maxRetries; i++ {
		fmt.Printf("Attempt %d/%d\n", i+1, maxRetries)

		req, err := http.NewRequest("GET", endpoint, nil)
		if err != nil {
			return 0, fmt.Errorf("error creating request: %v", err)
		}

		req.Header.Set("User-Agent", "tilecov-check/0.1")
		req.Header.Set("Accept-Encoding", "gzip")

		resp, err := client.Do(req)
		if err != nil {
			fmt.Printf("Request error on attempt %d: %v\n", i+1, err)
			if i == maxRetries-1 {
				return 0, fmt.Errorf("error making request: %v", err)
			}
			time.Sleep(retryDelay)
			continue
		}
		defer resp.Body.Close()

		fmt.Printf("Response status code: %d\n", resp.StatusCode)

		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			fmt.Printf("Response body: %s\n", string(bodyBytes))

			if resp.StatusCode == 401 || resp.StatusCode == 403 {
				return 0, fmt.Errorf("access token rejected, check MAPILLARY_ACCESS_TOKEN")
			}

			if i == maxRetries-1 {
				return 0, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
			}
			time.Sleep(retryDelay)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, fmt.Errorf("error reading response body: %v", err)
		}

		fmt.Printf("Got %d bytes\n", len(body))

		if len(body) == 0 {
			// Mapillary returns an empty body for tiles with no data
			return 0, nil
		}

		// The tile service gzips bodies regardless of Accept-Encoding
		if len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b {
			fmt.Println("Body is gzipped, decompressing...")
			gz, err := gzip.NewReader(bytes.NewReader(body))
			if err != nil {
				return 0, fmt.Errorf("error creating gzip reader: %v", err)
			}
			body, err = io.ReadAll(gz)
			gz.Close()
			if err != nil {
				return 0, fmt.Errorf("error decompressing body: %v", err)
			}
			fmt.Printf("Decompressed to %d bytes\n", len(body))
		}

		layers, err := mvt.Unmarshal(body)
		if err != nil {
			return 0, fmt.Errorf("error decoding vector tile: %v", err)
		}

		fmt.Printf("Tile has %d layers\n", len(layers))
		for _, layer := range layers {
			fmt.Printf("Layer %q: %d features\n", layer.Name, len(layer.Features))
			if layer.Name == "image" {
				return len(layer.Features), nil
			}
		}

		// No image layer means no coverage
		return 0, nil
	}

	return 0, fmt.Errorf("max retries exceeded")
}
