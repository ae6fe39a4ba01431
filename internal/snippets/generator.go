// Package snippets generates copy-paste integration code for wiring a
// storefront against the assignment and tracking API.
package snippets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

type Framework string

const (
	FrameworkCurl   Framework = "curl"
	FrameworkJS     Framework = "js"
	FrameworkReact  Framework = "react"
	FrameworkNextJS Framework = "nextjs"
)

type Config struct {
	ExperimentID string
	VariantIDs   []string
	ServerURL    string
	// WinnerVariantID is set once the experiment completed with a winner;
	// snippets then pin to it instead of calling the assign endpoint.
	WinnerVariantID string
}

type SnippetFile struct {
	Filename string
	Content  string
}

type templateData struct {
	ExperimentID    string
	PascalName      string
	VariantIDsJSON  string
	ServerURL       string
	WinnerVariantID string
}

func Generate(framework Framework, config Config) ([]SnippetFile, error) {
	data, err := buildTemplateData(config)
	if err != nil {
		return nil, err
	}

	switch framework {
	case FrameworkCurl:
		return render("integration.sh", curlTemplate, data)
	case FrameworkJS:
		return render("splitkit-client.js", jsTemplate, data)
	case FrameworkReact:
		return render("useExperiment.jsx", reactTemplate, data)
	case FrameworkNextJS:
		return render("useExperiment.jsx", nextjsTemplate, data)
	default:
		return nil, fmt.Errorf("unknown framework: %s", framework)
	}
}

func buildTemplateData(config Config) (templateData, error) {
	variantsJSON, err := json.Marshal(config.VariantIDs)
	if err != nil {
		return templateData{}, fmt.Errorf("failed to encode variant ids: %w", err)
	}

	return templateData{
		ExperimentID:    config.ExperimentID,
		PascalName:      pascalCase(config.ExperimentID),
		VariantIDsJSON:  string(variantsJSON),
		ServerURL:       strings.TrimRight(config.ServerURL, "/"),
		WinnerVariantID: config.WinnerVariantID,
	}, nil
}

func render(filename, text string, data templateData) ([]SnippetFile, error) {
	tmpl, err := template.New(filename).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return []SnippetFile{{Filename: filename, Content: buf.String()}}, nil
}

// pascalCase turns an id like "exp-hero-title" into "ExpHeroTitle" for
// use in generated hook names.
func pascalCase(id string) string {
	parts := strings.FieldsFunc(id, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

const curlTemplate = `# Assign a variant for a session (repeat calls return the same variant)
curl -X POST {{.ServerURL}}/api/experiments/{{.ExperimentID}}/assign \
  -H 'Content-Type: application/json' \
  -d '{"sessionId": "YOUR_SESSION_ID"}'

# Track a view for the assigned variant
curl -X POST {{.ServerURL}}/api/experiments/track \
  -H 'Content-Type: application/json' \
  -d '{"sessionId": "YOUR_SESSION_ID", "experimentId": "{{.ExperimentID}}", "variantId": "VARIANT_ID", "eventType": "view"}'

# Track a purchase with revenue
curl -X POST {{.ServerURL}}/api/experiments/track \
  -H 'Content-Type: application/json' \
  -d '{"sessionId": "YOUR_SESSION_ID", "experimentId": "{{.ExperimentID}}", "variantId": "VARIANT_ID", "eventType": "purchase", "metadata": {"revenue": 49.99}}'
`

const jsTemplate = `// splitkit client for experiment {{.ExperimentID}}
const SPLITKIT_URL = '{{.ServerURL}}';
const EXPERIMENT_ID = '{{.ExperimentID}}';

function splitkitSessionId() {
  let id = localStorage.getItem('sk_session');
  if (!id) {
    id = 'session-' + Date.now() + '-' + Math.random().toString(36).slice(2, 11);
    localStorage.setItem('sk_session', id);
  }
  return id;
}

export async function assignVariant(productId) {
{{- if .WinnerVariantID}}
  // Experiment completed; every visitor gets the winner.
  return { id: '{{.WinnerVariantID}}' };
{{- else}}
  const res = await fetch(SPLITKIT_URL + '/api/experiments/' + EXPERIMENT_ID + '/assign', {
    method: 'POST',
    headers: { 'Content-Type': 'application/json' },
    body: JSON.stringify({ sessionId: splitkitSessionId(), productId }),
  });
  if (!res.ok) throw new Error('assignment failed: ' + res.status);
  const body = await res.json();
  return body.variant;
{{- end}}
}

export function trackEvent(variantId, eventType, metadata) {
  navigator.sendBeacon(
    SPLITKIT_URL + '/api/experiments/track',
    JSON.stringify({
      sessionId: splitkitSessionId(),
      experimentId: EXPERIMENT_ID,
      variantId,
      eventType,
      metadata,
    })
  );
}
`

const reactTemplate = `import { useEffect, useState } from 'react';

const SPLITKIT_URL = '{{.ServerURL}}';
const EXPERIMENT_ID = '{{.ExperimentID}}';

function sessionId() {
  let id = localStorage.getItem('sk_session');
  if (!id) {
    id = 'session-' + Date.now() + '-' + Math.random().toString(36).slice(2, 11);
    localStorage.setItem('sk_session', id);
  }
  return id;
}

export function use{{.PascalName}}(productId) {
  const [variant, setVariant] = useState(null);

  useEffect(() => {
{{- if .WinnerVariantID}}
    setVariant({ id: '{{.WinnerVariantID}}' });
{{- else}}
    fetch(SPLITKIT_URL + '/api/experiments/' + EXPERIMENT_ID + '/assign', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify({ sessionId: sessionId(), productId }),
    })
      .then((res) => (res.ok ? res.json() : null))
      .then((body) => body && setVariant(body.variant))
      .catch(() => setVariant(null));
{{- end}}
  }, [productId]);

  const track = (eventType, metadata) => {
    if (!variant) return;
    navigator.sendBeacon(
      SPLITKIT_URL + '/api/experiments/track',
      JSON.stringify({
        sessionId: sessionId(),
        experimentId: EXPERIMENT_ID,
        variantId: variant.id,
        eventType,
        metadata,
      })
    );
  };

  return { variant, track };
}
`

const nextjsTemplate = `'use client';

` + reactTemplate
