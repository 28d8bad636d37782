package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportRowDecodesScalarCells(t *testing.T) {
	payload := `{"rows":[{"product_name":"Tee","price":100,"stock":5.0,"is_new":true,"is_trending":false,"brand":null,"seo_meta":{"metaTitle":"Tee"}}]}`

	var task ImportTask
	require.NoError(t, json.Unmarshal([]byte(payload), &task))
	require.Len(t, task.Rows, 1)

	assert.Equal(t, ImportRow{
		"product_name": "Tee",
		"price":        "100",
		"stock":        "5.0",
		"is_new":       "true",
		"is_trending":  "false",
		"brand":        "",
		"seo_meta":     `{"metaTitle":"Tee"}`,
	}, task.Rows[0])
}

func TestImportRowRejectsNonObject(t *testing.T) {
	var task ImportTask
	assert.Error(t, json.Unmarshal([]byte(`{"rows":["oops"]}`), &task))
	assert.Error(t, json.Unmarshal([]byte(`{"rows":"oops"}`), &task))
}
