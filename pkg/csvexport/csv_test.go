package csvexport

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type base struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type expense struct {
	base
	Amount   float64  `json:"amount"`
	Category string   `json:"category"`
	Project  *string  `json:"project_id"`
	Tags     []string `json:"tags"`
	Secret   string   `json:"-"`
	internal int
}

func TestMarshal_Maps(t *testing.T) {
	out, err := Marshal([]map[string]any{
		{"name": "A", "amount": 10},
		{"name": "B", "amount": 2.5},
	})
	require.NoError(t, err)
	require.Equal(t, "amount,name\n\"10\",\"A\"\n\"2.5\",\"B\"", out)
}

func TestMarshal_Structs(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	proj := "p-1"

	out, err := Marshal([]expense{
		{base: base{ID: id, CreatedAt: at}, Amount: 99.5, Category: "Salaries", Project: &proj, Tags: []string{"x"}, Secret: "s", internal: 1},
		{base: base{ID: id, CreatedAt: at}, Amount: 1, Category: "Fuel"},
	})
	require.NoError(t, err)
	require.Equal(t,
		"id,created_at,amount,category,project_id,tags\n"+
			`"11111111-2222-3333-4444-555555555555","2024-05-01T12:00:00Z","99.5","Salaries","p-1","["x"]"`+"\n"+
			`"11111111-2222-3333-4444-555555555555","2024-05-01T12:00:00Z","1","Fuel","",""`,
		out)
}

func TestMarshal_NoEscaping(t *testing.T) {
	out, err := Marshal([]map[string]string{{"note": `say "hi", bye`}})
	require.NoError(t, err)
	require.Equal(t, "note\n\"say \"hi\", bye\"", out)
}

func TestMarshal_Empty(t *testing.T) {
	out, err := Marshal([]expense{})
	require.NoError(t, err)
	require.Empty(t, out)

	out, err = Marshal(nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestMarshal_RejectsNonSlice(t *testing.T) {
	_, err := Marshal(expense{})
	require.Error(t, err)
}

func TestMarshal_Pointers(t *testing.T) {
	out, err := Marshal([]*map[string]any{{"a": nil}})
	require.NoError(t, err)
	require.Equal(t, "a\n\"\"", out)
}
