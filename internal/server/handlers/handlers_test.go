package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/tabserve/internal/ingest"
	"github.com/maruel/tabserve/internal/llm"
	"github.com/maruel/tabserve/internal/server/dto"
	"github.com/maruel/tabserve/internal/storage"
	"github.com/maruel/tabserve/internal/tabular"
)

func newTestServices(t *testing.T) (*Services, *Config) {
	t.Helper()
	dataDir := t.TempDir()
	store, err := storage.Open(t.Context(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	in, err := ingest.New(store, dataDir, 2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = in.Close(time.Second) })
	sc := storage.DefaultServerConfig()
	sc.MaxPageSize = 100
	sc.DefaultPageSize = 2
	svc := &Services{
		Engine: tabular.NewEngine(tabular.NewCache(tabular.StatModTime, tabular.LoadFile), sc.MaxPageSize),
		Store:  store,
		Ingest: in,
	}
	return svc, &Config{ServerConfig: sc, DataDir: dataDir, Version: "test"}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func wantCode(t *testing.T, err error, status int, code dto.ErrorCode) {
	t.Helper()
	var ews dto.ErrorWithStatus
	if !errors.As(err, &ews) {
		t.Fatalf("error = %v, want an API error", err)
	}
	if ews.StatusCode() != status || ews.Code() != code {
		t.Errorf("error = %d %s, want %d %s", ews.StatusCode(), ews.Code(), status, code)
	}
}

func ptr[T any](v T) *T { return &v }

const peopleCSV = "name,age,city\nalice,30,paris\nbob,25,berlin\ncarol,35,paris\ndave,22,rome\n"

func TestDataHandler_Resolve(t *testing.T) {
	svc, cfg := newTestServices(t)
	writeFile(t, cfg.DataDir, "people.csv", peopleCSV)
	writeFile(t, cfg.DataDir, "events.json", `[{"a":1}]`)
	if err := os.Mkdir(filepath.Join(cfg.DataDir, "dir.csv"), 0o700); err != nil {
		t.Fatal(err)
	}
	h := &DataHandler{Svc: svc, Cfg: cfg}

	tests := []struct {
		name     string
		wantBase string
		wantCode dto.ErrorCode
	}{
		{"people", "people.csv", ""},
		{"people.csv", "people.csv", ""},
		{"events", "events.json", ""},
		{"missing", "", dto.ErrorCodeDatasetNotFound},
		{"dir", "", dto.ErrorCodeDatasetNotFound},
		{"../people", "", dto.ErrorCodeInvalidPath},
		{"/etc/passwd.csv", "", dto.ErrorCodeInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.resolve(tt.name)
			if tt.wantCode != "" {
				var ews dto.ErrorWithStatus
				if !errors.As(err, &ews) || ews.Code() != tt.wantCode {
					t.Fatalf("resolve(%q) error = %v, want %s", tt.name, err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if filepath.Base(got) != tt.wantBase {
				t.Errorf("resolve(%q) = %q, want %s", tt.name, got, tt.wantBase)
			}
		})
	}

	t.Run("symlink escape", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "secret.csv")
		writeFile(t, filepath.Dir(outside), "secret.csv", "a\n1\n")
		if err := os.Symlink(outside, filepath.Join(cfg.DataDir, "secret.csv")); err != nil {
			t.Skip(err)
		}
		_, err := h.resolve("secret")
		wantCode(t, err, http.StatusBadRequest, dto.ErrorCodeInvalidPath)
	})
}

func TestConfined(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "in.csv", "a\n1\n")
	other := t.TempDir()
	writeFile(t, other, "out.csv", "a\n1\n")
	tests := []struct {
		name string
		root string
		path string
		want bool
	}{
		{"inside", root, filepath.Join(root, "in.csv"), true},
		{"outside", root, filepath.Join(other, "out.csv"), false},
		{"missing file", root, filepath.Join(root, "gone.csv"), false},
		{"unresolvable root", filepath.Join(root, "gone"), filepath.Join(root, "in.csv"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confined(tt.root, tt.path); got != tt.want {
				t.Errorf("confined(%q, %q) = %v, want %v", tt.root, tt.path, got, tt.want)
			}
		})
	}
}

func TestDataHandler_Query(t *testing.T) {
	svc, cfg := newTestServices(t)
	writeFile(t, cfg.DataDir, "people.csv", peopleCSV)
	h := &DataHandler{Svc: svc, Cfg: cfg}
	ctx := t.Context()

	t.Run("default limit", func(t *testing.T) {
		page, err := h.Query(ctx, &dto.QueryDataRequest{Name: "people"})
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 4 || page.Limit != 2 || page.Offset != 0 || len(page.Items) != 2 {
			t.Errorf("page = %d/%d/%d with %d items", page.Total, page.Limit, page.Offset, len(page.Items))
		}
	})

	t.Run("filter and sort", func(t *testing.T) {
		page, err := h.Query(ctx, &dto.QueryDataRequest{Name: "people", Filter: "city==paris", Sort: "age:desc", Limit: ptr(10)})
		if err != nil {
			t.Fatal(err)
		}
		b, err := json.Marshal(page)
		if err != nil {
			t.Fatal(err)
		}
		want := `{"total":2,"limit":10,"offset":0,"items":[{"name":"carol","age":35,"city":"paris"},{"name":"alice","age":30,"city":"paris"}]}`
		if string(b) != want {
			t.Errorf("page = %s, want %s", b, want)
		}
	})

	t.Run("limit above max", func(t *testing.T) {
		_, err := h.Query(ctx, &dto.QueryDataRequest{Name: "people", Limit: ptr(101)})
		wantCode(t, err, http.StatusBadRequest, dto.ErrorCodeValidationFailed)
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := h.Query(ctx, &dto.QueryDataRequest{Name: "people", Filter: "age"})
		wantCode(t, err, http.StatusBadRequest, dto.ErrorCodeInvalidFilter)
	})

	t.Run("zero limit", func(t *testing.T) {
		page, err := h.Query(ctx, &dto.QueryDataRequest{Name: "people", Limit: ptr(0)})
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 4 || len(page.Items) != 0 {
			t.Errorf("page = %d with %d items", page.Total, len(page.Items))
		}
	})
}

func TestDataHandler_CountSchemaList(t *testing.T) {
	svc, cfg := newTestServices(t)
	writeFile(t, cfg.DataDir, "people.csv", peopleCSV)
	writeFile(t, cfg.DataDir, "broken.json", `{"a":`)
	writeFile(t, cfg.DataDir, "notes.txt", "ignored")
	h := &DataHandler{Svc: svc, Cfg: cfg}
	ctx := t.Context()

	n, err := h.Count(ctx, &dto.CountDataRequest{Name: "people", Filter: "age>=30"})
	if err != nil {
		t.Fatal(err)
	}
	if *n != 2 {
		t.Errorf("Count = %d, want 2", *n)
	}

	s, err := h.Schema(ctx, &dto.DatasetSchemaRequest{Name: "people"})
	if err != nil {
		t.Fatal(err)
	}
	want := []dto.FieldInfo{{Name: "name", DType: "object"}, {Name: "age", DType: "int64"}, {Name: "city", DType: "object"}}
	if s.Name != "people" || len(s.Fields) != len(want) {
		t.Fatalf("Schema = %+v", s)
	}
	for i := range want {
		if s.Fields[i] != want[i] {
			t.Errorf("Fields[%d] = %+v, want %+v", i, s.Fields[i], want[i])
		}
	}

	js, err := h.JSONSchema(ctx, &dto.DatasetSchemaRequest{Name: "people"})
	if err != nil {
		t.Fatal(err)
	}
	if js.Properties.Len() != 3 {
		t.Errorf("JSONSchema has %d properties, want 3", js.Properties.Len())
	}

	_, err = h.Schema(ctx, &dto.DatasetSchemaRequest{Name: "broken"})
	wantCode(t, err, http.StatusUnprocessableEntity, dto.ErrorCodeDatasetLoadFailed)

	list, err := h.ListDatasets(ctx, &dto.ListDatasetsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(*list) != 2 {
		t.Fatalf("ListDatasets = %+v", *list)
	}
	if l := (*list)[0]; l.Name != "broken" || l.Path != "broken.json" || l.Rows != nil {
		t.Errorf("ListDatasets[0] = %+v", l)
	}
	if l := (*list)[1]; l.Name != "people" || l.Rows == nil || *l.Rows != 4 {
		t.Errorf("ListDatasets[1] = %+v", l)
	}
}

func TestTableHandler(t *testing.T) {
	svc, cfg := newTestServices(t)
	ctx := t.Context()
	coll, err := svc.Store.EnsureCollection(ctx, "demo", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Ingest.Import(ctx, strings.NewReader(peopleCSV), ingest.TypeCSV, "people.csv", "people", coll.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Ingest.Import(ctx, strings.NewReader(`[{"x":1}]`), ingest.TypeJSON, "x.json", "loose", 0); err != nil {
		t.Fatal(err)
	}
	h := &TableHandler{Svc: svc, Cfg: cfg}

	tables, err := h.ListTables(ctx, &dto.ListTablesRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(*tables) != 2 {
		t.Errorf("ListTables = %d tables, want 2", len(*tables))
	}

	page, err := h.QueryTable(ctx, &dto.QueryTableRequest{Table: "people", Filter: "city==paris", Sort: "age", Limit: ptr(10)})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Errorf("QueryTable = %+v", page)
	}

	_, err = h.QueryTable(ctx, &dto.QueryTableRequest{Table: "nope"})
	wantCode(t, err, http.StatusNotFound, dto.ErrorCodeTableNotFound)

	colls, err := h.ListCollections(ctx, &dto.ListCollectionsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(*colls) != 1 || (*colls)[0].Name != "demo" {
		t.Errorf("ListCollections = %+v", *colls)
	}

	got, err := h.GetCollection(ctx, &dto.GetCollectionRequest{ID: coll.ID})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != coll.ID.String() {
		t.Errorf("GetCollection ID = %s, want %s", got.ID, coll.ID)
	}
	_, err = h.GetCollection(ctx, &dto.GetCollectionRequest{ID: ksid.NewID()})
	wantCode(t, err, http.StatusNotFound, dto.ErrorCodeNotFound)

	inColl, err := h.ListCollectionTables(ctx, &dto.GetCollectionRequest{ID: coll.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(*inColl) != 1 || (*inColl)[0].TableName != "people" {
		t.Errorf("ListCollectionTables = %+v", *inColl)
	}
}

func TestDocumentHandler(t *testing.T) {
	svc, cfg := newTestServices(t)
	ctx := t.Context()
	coll, err := svc.Store.EnsureCollection(ctx, "docs", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.docx", "b.docx", "c.docx"} {
		if err := svc.Store.CreateDocument(ctx, &storage.Document{CollectionID: coll.ID, Filename: name, Content: "text of " + name}); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.Store.CreateDocument(ctx, &storage.Document{Filename: "a.docx", Content: "elsewhere"}); err != nil {
		t.Fatal(err)
	}
	h := &DocumentHandler{Svc: svc, Cfg: cfg}

	tests := []struct {
		name      string
		req       dto.ListDocumentsRequest
		wantTotal int
		wantLen   int
	}{
		{"all", dto.ListDocumentsRequest{}, 4, 4},
		{"collection", dto.ListDocumentsRequest{CollectionID: coll.ID.String()}, 3, 3},
		{"filename", dto.ListDocumentsRequest{Filename: "a.docx"}, 2, 2},
		{"page", dto.ListDocumentsRequest{Skip: ptr(1), Limit: ptr(2)}, 4, 2},
		{"count only", dto.ListDocumentsRequest{Limit: ptr(0)}, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.ListDocuments(ctx, &tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if got.Total != tt.wantTotal || len(got.Documents) != tt.wantLen {
				t.Errorf("ListDocuments = total %d, %d documents, want %d, %d", got.Total, len(got.Documents), tt.wantTotal, tt.wantLen)
			}
		})
	}

	list, err := h.ListDocuments(ctx, &dto.ListDocumentsRequest{Filename: "b.docx"})
	if err != nil {
		t.Fatal(err)
	}
	id, err := ksid.Parse(list.Documents[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := h.GetDocument(ctx, &dto.GetDocumentRequest{ID: id})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Content != "text of b.docx" {
		t.Errorf("GetDocument content = %q", doc.Content)
	}
	_, err = h.GetDocument(ctx, &dto.GetDocumentRequest{ID: ksid.NewID()})
	wantCode(t, err, http.StatusNotFound, dto.ErrorCodeNotFound)
}

func TestLLMHandler(t *testing.T) {
	var got map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		if got["model"] == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"unknown model"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"c1","choices":[{"message":{"role":"assistant","content":"hi there"}}]}`))
	}))
	t.Cleanup(upstream.Close)

	svc, _ := newTestServices(t)
	svc.LLM = llm.NewClient(upstream.URL, "", llm.Defaults{Model: "m", MaxTokens: 16}, 5*time.Second)
	h := &LLMHandler{Svc: svc}
	ctx := t.Context()

	resp, err := h.Completion(ctx, &dto.CompletionRequest{Messages: []dto.Message{{Role: "user", Content: "hello"}}, Temperature: ptr(0.5)})
	if err != nil {
		t.Fatal(err)
	}
	if (*resp)["id"] != "c1" {
		t.Errorf("Completion = %+v", *resp)
	}
	if got["model"] != "m" || got["temperature"] != 0.5 {
		t.Errorf("upstream request = %+v", got)
	}

	text, err := h.Text(ctx, &dto.TextRequest{Prompt: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if text.Text != "hi there" || text.FullResponse["id"] != "c1" {
		t.Errorf("Text = %+v", text)
	}

	_, err = h.Text(ctx, &dto.TextRequest{Prompt: "hello", Model: "bad"})
	wantCode(t, err, http.StatusBadGateway, dto.ErrorCodeUpstream)

	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()
	h.Svc = &Services{LLM: llm.NewClient(down.URL, "", llm.Defaults{Model: "m"}, time.Second)}
	_, err = h.Text(ctx, &dto.TextRequest{Prompt: "hello"})
	wantCode(t, err, http.StatusBadGateway, dto.ErrorCodeUpstream)

	h.Svc = &Services{}
	_, err = h.Text(ctx, &dto.TextRequest{Prompt: "hello"})
	wantCode(t, err, http.StatusServiceUnavailable, dto.ErrorCodeNotConfigured)
}

func TestSchemaHandler(t *testing.T) {
	h := &SchemaHandler{}
	s, err := h.RequestSchema(t.Context(), &dto.RequestSchemaRequest{Type: "batch-upload"})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"collection_name", "files_info"} {
		if _, ok := s.Properties.Get(name); !ok {
			t.Errorf("batch-upload schema lacks %q", name)
		}
	}
	_, err = h.RequestSchema(t.Context(), &dto.RequestSchemaRequest{Type: "nope"})
	wantCode(t, err, http.StatusNotFound, dto.ErrorCodeNotFound)
}

func TestHealthHandler(t *testing.T) {
	got, err := NewHealthHandler("v1").Health(t.Context(), &dto.HealthRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "ok" || got.Version != "v1" {
		t.Errorf("Health = %+v", got)
	}
}
