package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the dashboard server")
	location := flag.String("location", "Oaxaca", "Location to load")
	flag.Parse()

	fmt.Println("Weather Dashboard API Client Example")
	fmt.Println("====================================")

	// Search suggestions
	fmt.Println("\nSearching locations...")
	var suggestions []map[string]interface{}
	searchURL := fmt.Sprintf("%s/api/locations/search?q=%s", *baseURL, url.QueryEscape(*location))
	if err := call(http.MethodGet, searchURL, nil, &suggestions); err != nil {
		fmt.Printf("Error searching locations: %v\n", err)
		os.Exit(1)
	}
	for _, s := range suggestions {
		fmt.Printf("  %v, %v\n", s["name"], s["region"])
	}

	// Create a session
	var session struct {
		ID     string                 `json:"id"`
		Config map[string]interface{} `json:"config"`
	}
	if err := call(http.MethodPost, *baseURL+"/api/sessions", nil, &session); err != nil {
		fmt.Printf("Error creating session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nSession %s created with layout %v\n", session.ID, session.Config)
	sessionURL := *baseURL + "/api/sessions/" + session.ID
	defer call(http.MethodDelete, sessionURL, nil, nil)

	// Load the location
	fmt.Printf("Loading %s...\n", *location)
	var view map[string]interface{}
	if err := call(http.MethodPost, sessionURL+"/location", map[string]string{"query": *location}, &view); err != nil {
		fmt.Printf("Error loading location: %v\n", err)
		os.Exit(1)
	}
	printView(view)

	// Click the first look-ahead card
	slots, _ := view["lookAhead"].([]interface{})
	if len(slots) == 0 {
		return
	}
	first, _ := slots[0].(map[string]interface{})
	if hidden, _ := first["hidden"].(bool); hidden {
		fmt.Println("No days after the selected one.")
		return
	}
	fmt.Printf("\nSelecting %v...\n", first["date"])
	if err := call(http.MethodPost, sessionURL+"/select", map[string]interface{}{"date": first["date"]}, &view); err != nil {
		fmt.Printf("Error selecting day: %v\n", err)
		os.Exit(1)
	}
	printView(view)
}

// call sends body as JSON and decodes the response into out
func call(method, target string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s: %s", method, target, resp.Status, bytes.TrimSpace(respBody))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func printView(view map[string]interface{}) {
	prettyJSON, _ := json.MarshalIndent(map[string]interface{}{
		"query":        view["query"],
		"availability": view["availability"],
		"primary":      view["primary"],
		"lookAhead":    view["lookAhead"],
		"warning":      view["warning"],
	}, "", "  ")
	fmt.Println(string(prettyJSON))
}
