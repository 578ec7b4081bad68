package carbone

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	u "carbone2pdf/internal/utils"
)

func TestBuildPayload_Defaults(t *testing.T) {
	req := BuildPayload("<t/>", nil, "")
	assert.Equal(t, "<t/>", req.Template)
	assert.NotNil(t, req.Data)
	assert.Empty(t, req.Data)
	assert.Equal(t, DefaultConvertTo, req.ConvertTo)

	req = BuildPayload("<t/>", map[string]any{"a": 1}, " docx ")
	assert.Equal(t, "docx", req.ConvertTo)
	assert.Equal(t, 1, req.Data["a"])
}

func TestRenderRequest_EncodeRoundTrip(t *testing.T) {
	req := BuildPayload(
		`<t>{d.collection_ref} & <b>"quoted"</b></t>`,
		map[string]any{
			"collection_ref": "PO-0047",
			"delivery_time":  "2PM-3PM",
			"deliveries": []any{
				map[string]any{"item": "STELLA ARTOIS/10G", "quantity_collected": 216.0, "quantity_delivered": 216.0},
				map[string]any{"item": "BUD.LIGHT/11G", "quantity_collected": 48.0, "quantity_delivered": 48.0},
			},
			"nested": map[string]any{"ok": true, "nothing": nil},
		},
		"pdf",
	)

	raw, err := req.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<b>", "template must not be HTML escaped")

	var back RenderRequest
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, req, back)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	assert.ElementsMatch(t, []string{"template", "data", "convertTo"}, mapKeys(keys))
}

func TestLoadData_KeepsNumbers(t *testing.T) {
	p := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"ref":"PO-0047","qty":9007199254740993,"items":[{"n":1}]}`), 0o644))

	data, err := LoadData(p)
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), data["qty"])

	raw, err := BuildPayload("t", data, "pdf").Encode()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"qty":9007199254740993`)
}

func TestLoadData_Errors(t *testing.T) {
	_, err := LoadData(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrFileAccess)

	p := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(p, []byte(`[1,2]`), 0o644))
	_, err = LoadData(p)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFileAccess)
}

func TestClient_Defaults(t *testing.T) {
	c := NewClient("", "", "tok", 0)
	assert.Equal(t, DefaultEndpoint, c.Endpoint)
	assert.Equal(t, DefaultAPIVersion, c.APIVersion)
	assert.Equal(t, time.Duration(0), c.HTTP.Timeout)

	var cfg u.CarboneConfig
	cfg.EndpointURL = "https://example.test/render"
	cfg.APIVersion = "5"
	cfg.Timeout = 3 * time.Second
	c = NewClientFromConfig(cfg, "tok")
	assert.Equal(t, "https://example.test/render", c.Endpoint)
	assert.Equal(t, "5", c.APIVersion)
	assert.Equal(t, 3*time.Second, c.HTTP.Timeout)
}

func TestClient_MissingTokenSendsNothing(t *testing.T) {
	srv := newStubServer(t, http.StatusOK, []byte("%PDF"))
	c := NewClient(srv.URL, "", "  ", 0)

	_, err := c.Submit(context.Background(), BuildPayload("t", nil, ""))
	assert.ErrorIs(t, err, u.ErrMissingCredential)
	assert.Equal(t, int32(0), srv.calls.Load())
}

func TestClient_Render(t *testing.T) {
	ok := newStubServer(t, http.StatusOK, []byte("%PDF-1.7"))
	body, err := NewClient(ok.URL, "", "tok", 0).Render(context.Background(), BuildPayload("t", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(body))

	bad := newStubServer(t, http.StatusUnauthorized, nil)
	_, err = NewClient(bad.URL, "", "tok", 0).Render(context.Background(), BuildPayload("t", nil, ""))
	require.Error(t, err)
	assert.Equal(t, "remote rendering failed: status 401: Unauthorized", err.Error())
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := newStubServer(t, http.StatusOK, []byte("%PDF"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL, "", "tok", 0).Submit(ctx, BuildPayload("t", nil, ""))
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("pdf"))
	assert.Equal(t, "application/pdf", ContentType("PDF"))
	assert.Equal(t, "application/octet-stream", ContentType("bin"))
}

func mapKeys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
