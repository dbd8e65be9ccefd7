package config

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	err := sr.RegisterSchema("custom", `
name:  string
count: int & >0
`)
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("custom")
	if !ok {
		t.Fatal("expected to find custom schema")
	}
	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}

	names := sr.ListSchemas()
	if len(names) != 2 || names[0] != "custom" || names[1] != DriverSchema {
		t.Errorf("ListSchemas() = %v", names)
	}
}

func TestSchemaRegistry_RegisterInvalid(t *testing.T) {
	sr := NewSchemaRegistry()
	if err := sr.RegisterSchema("broken", `name: string &`); err == nil {
		t.Fatal("expected compile error")
	}
	if _, ok := sr.GetSchema("broken"); ok {
		t.Error("broken schema should not be registered")
	}
}

func TestSchemaRegistry_ValidateJSON(t *testing.T) {
	sr := NewSchemaRegistry()
	if err := sr.RegisterSchema("custom", "name: string\ncount: int & >0\n"); err != nil {
		t.Fatal(err)
	}

	if err := sr.ValidateJSON("custom", []byte(`{"name": "a", "count": 2}`)); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}

	err := sr.ValidateJSON("custom", []byte(`{"name": "a", "count": 0}`))
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verrs) == 0 {
		t.Error("expected at least one problem")
	}

	if err := sr.ValidateJSON("missing", []byte(`{}`)); err == nil {
		t.Error("expected error for unknown schema")
	}
}

func TestDriverSchema_AcceptsDefaults(t *testing.T) {
	doc, err := json.Marshal(Default())
	if err != nil {
		t.Fatal(err)
	}
	if err := NewSchemaRegistry().ValidateJSON(DriverSchema, doc); err != nil {
		t.Fatalf("defaults rejected by schema: %v", err)
	}
}

func TestDriverSchema_CrossFieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"otlp without endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}},
		{"journal without path", func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.Path = ""
		}},
		{"relative metrics path", func(c *Config) {
			c.Metrics.Path = "metrics"
		}},
		{"unknown builtin policy", func(c *Config) {
			c.Policy.Enable = []string{"no-such-policy"}
		}},
	}

	sr := NewSchemaRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			doc, err := json.Marshal(cfg)
			if err != nil {
				t.Fatal(err)
			}
			if err := sr.ValidateJSON(DriverSchema, doc); err == nil {
				t.Error("expected schema violation")
			}
		})
	}
}
