package deploy

import (
	"encoding/json"
	"net/url"
)

const postmanSchema = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

// PostmanCollection is a Postman v2.1 collection with one request per
// deployed endpoint.
type PostmanCollection struct {
	Info PostmanInfo   `json:"info"`
	Item []PostmanItem `json:"item"`
}

type PostmanInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      string `json:"schema"`
}

type PostmanItem struct {
	Name    string         `json:"name"`
	Request PostmanRequest `json:"request"`
}

type PostmanRequest struct {
	Method string          `json:"method"`
	Header []PostmanHeader `json:"header"`
	Body   PostmanBody     `json:"body"`
	URL    PostmanURL      `json:"url"`
}

type PostmanHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

type PostmanBody struct {
	Mode string `json:"mode"`
	Raw  string `json:"raw"`
}

type PostmanURL struct {
	Raw      string   `json:"raw"`
	Protocol string   `json:"protocol,omitempty"`
	Host     []string `json:"host"`
	Port     string   `json:"port,omitempty"`
	Path     []string `json:"path"`
}

// Postman builds a ready-to-import collection for a deployed agent.
func (m *Manager) Postman(agentID string) (*PostmanCollection, error) {
	a, err := m.agents.Get(agentID)
	if err != nil {
		return nil, err
	}
	if !a.IsDeployed || a.APIToken == "" {
		return nil, ErrNotDeployed
	}

	raw, err := json.MarshalIndent(map[string]any{
		"prompt":  "Your message here",
		"context": map[string]any{},
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	endpoint := a.APIEndpoint
	if endpoint == "" {
		endpoint = m.Endpoint(a.ID)
	}
	u := PostmanURL{
		Raw:  endpoint,
		Host: []string{"localhost"},
		Path: []string{"api", "v1", "agents", a.ID, "chat"},
	}
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Hostname() != "" {
		u.Protocol = parsed.Scheme
		u.Host = []string{parsed.Hostname()}
		u.Port = parsed.Port()
	}

	return &PostmanCollection{
		Info: PostmanInfo{
			Name:        a.Name + " API",
			Description: "API collection for " + a.Name + " agent",
			Schema:      postmanSchema,
		},
		Item: []PostmanItem{{
			Name: "Chat with Agent",
			Request: PostmanRequest{
				Method: "POST",
				Header: []PostmanHeader{
					{Key: "Authorization", Value: "Bearer " + a.APIToken, Type: "text"},
					{Key: "Content-Type", Value: "application/json", Type: "text"},
				},
				Body: PostmanBody{Mode: "raw", Raw: string(raw)},
				URL:  u,
			},
		}},
	}, nil
}
