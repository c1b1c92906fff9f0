package mcp

import (
	"bytes"
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/synexpand/internal/source"
)

// Resource URIs.
const (
	SynonymsURI = "synexpand://synonyms"
	ConfigURI   = "synexpand://config"
)

const yamlMIMEType = "application/yaml"

// ResourceInfo contains information about a resource.
type ResourceInfo struct {
	URI      string
	Name     string
	MIMEType string
}

// ResourceContent contains the content of a resource.
type ResourceContent struct {
	URI      string
	Content  string
	MIMEType string
}

// registerResources registers the dictionary and config resources.
func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "synonyms",
			URI:         SynonymsURI,
			Description: "The synonym dictionary currently served to the rewriter, as YAML",
			MIMEType:    yamlMIMEType,
		},
		s.makeHandler(SynonymsURI),
	)
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "config",
			URI:         ConfigURI,
			Description: "The effective synexpand configuration, as YAML",
			MIMEType:    yamlMIMEType,
		},
		s.makeHandler(ConfigURI),
	)
}

func (s *Server) makeHandler(uri string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		rc, err := s.ReadResource(ctx, uri)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: rc.URI, MIMEType: rc.MIMEType, Text: rc.Content},
			},
		}, nil
	}
}

// ListResources returns the resources the server exposes.
func (s *Server) ListResources() []ResourceInfo {
	return []ResourceInfo{
		{URI: SynonymsURI, Name: "synonyms", MIMEType: yamlMIMEType},
		{URI: ConfigURI, Name: "config", MIMEType: yamlMIMEType},
	}
}

// ReadResource returns the content of a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	var buf bytes.Buffer
	switch uri {
	case SynonymsURI:
		dict, err := s.provider.Synonyms(ctx, s.refresh)
		if err != nil {
			return nil, MapError(err)
		}
		if err := source.WriteYAML(&buf, dict); err != nil {
			return nil, MapError(err)
		}
	case ConfigURI:
		if err := s.config.Encode(&buf); err != nil {
			return nil, MapError(err)
		}
	default:
		return nil, NewResourceNotFoundError(uri)
	}
	return &ResourceContent{URI: uri, Content: buf.String(), MIMEType: yamlMIMEType}, nil
}

