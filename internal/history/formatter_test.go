package history

import (
	"strings"
	"testing"
	"time"

	"github.com/raki39/FRONTGraph-sub001/internal/model"
)

func fm(id, role, content, sqlQuery string, seq int, source Source, score float64) RetrievedMessage {
	return RetrievedMessage{
		Message: &model.ChatMessage{
			ID:            id,
			Role:          role,
			Content:       content,
			SQLQuery:      sqlQuery,
			SequenceOrder: seq,
			CreatedAt:     baseTime.Add(time.Duration(seq) * time.Second),
		},
		Source:         source,
		RelevanceScore: score,
	}
}

func TestFormatContextSinglePair(t *testing.T) {
	input := []RetrievedMessage{
		fm("m1", model.RoleUser, "Quantos clientes?", "", 1, SourceLastInteraction, scoreLastInteractionUser),
		fm("m2", model.RoleAssistant, "150 clientes", "SELECT COUNT(*) FROM clientes", 2, SourceLastInteraction, scoreLastInteractionAssistant),
	}

	want := "ULTIMA_INTERACAO:\n[PERGUNTA] Quantos clientes? -> [RESPOSTA] 150 clientes -> [QUERYSQL] SELECT COUNT(*) FROM clientes"
	if got := FormatContext(input); got != want {
		t.Errorf("FormatContext() =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatContextTwoSections(t *testing.T) {
	input := []RetrievedMessage{
		fm("m1", model.RoleUser, "Qual o faturamento?", "", 1, SourceSemanticSearch, 0.9),
		fm("m2", model.RoleAssistant, "R$ 10.000", "SELECT SUM(valor) FROM pedidos", 2, SourceSemanticSearch, 0.9),
		fm("m3", model.RoleUser, "Quantos clientes?", "", 3, SourceLastInteraction, scoreLastInteractionUser),
		fm("m4", model.RoleAssistant, "150 clientes", "SELECT COUNT(*) FROM clientes", 4, SourceLastInteraction, scoreLastInteractionAssistant),
	}

	want := strings.Join([]string{
		"ULTIMA_INTERACAO:",
		"[PERGUNTA] Quantos clientes? -> [RESPOSTA] 150 clientes -> [QUERYSQL] SELECT COUNT(*) FROM clientes",
		"",
		"HISTORICO_RELEVANTE:",
		"[PERGUNTA] Qual o faturamento? -> [RESPOSTA] R$ 10.000 -> [QUERYSQL] SELECT SUM(valor) FROM pedidos",
	}, "\n")
	if got := FormatContext(input); got != want {
		t.Errorf("FormatContext() =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatContextTaggedPairWinsOverNewer(t *testing.T) {
	// The tagged exchange goes to ULTIMA_INTERACAO even when a newer pair
	// exists in the input.
	input := []RetrievedMessage{
		fm("m1", model.RoleUser, "Pergunta marcada", "", 1, SourceLastInteraction, scoreLastInteractionUser),
		fm("m2", model.RoleAssistant, "Resposta marcada", "", 2, SourceLastInteraction, scoreLastInteractionAssistant),
		fm("m3", model.RoleUser, "Pergunta nova", "", 3, SourceRecentSession, scoreRecentSession),
		fm("m4", model.RoleAssistant, "Resposta nova", "", 4, SourceRecentSession, scoreRecentSession),
	}

	got := FormatContext(input)
	wantFirst := "ULTIMA_INTERACAO:\n[PERGUNTA] Pergunta marcada -> [RESPOSTA] Resposta marcada"
	if !strings.HasPrefix(got, wantFirst) {
		t.Errorf("FormatContext() =\n%q\nwant prefix\n%q", got, wantFirst)
	}
	if !strings.Contains(got, "HISTORICO_RELEVANTE:\n[PERGUNTA] Pergunta nova -> [RESPOSTA] Resposta nova") {
		t.Errorf("newer pair missing from relevant section:\n%q", got)
	}
}

func TestFormatContextRelevantOrderedByScore(t *testing.T) {
	input := []RetrievedMessage{
		fm("m1", model.RoleUser, "Pergunta fraca", "", 1, SourceTextSearch, 0.5),
		fm("m2", model.RoleAssistant, "Resposta fraca", "", 2, SourceTextSearch, 0.5),
		fm("m3", model.RoleUser, "Pergunta forte", "", 3, SourceSemanticSearch, 0.95),
		fm("m4", model.RoleAssistant, "Resposta forte", "", 4, SourceSemanticSearch, 0.95),
		fm("m5", model.RoleUser, "Pergunta atual", "", 5, SourceLastInteraction, scoreLastInteractionUser),
		fm("m6", model.RoleAssistant, "Resposta atual", "", 6, SourceLastInteraction, scoreLastInteractionAssistant),
	}

	got := FormatContext(input)
	strong := strings.Index(got, "Pergunta forte")
	weak := strings.Index(got, "Pergunta fraca")
	if strong < 0 || weak < 0 {
		t.Fatalf("expected both relevant pairs in output:\n%q", got)
	}
	if strong > weak {
		t.Errorf("higher-scored pair rendered after lower-scored one:\n%q", got)
	}
}

func TestFormatContextUnpairedMessages(t *testing.T) {
	tests := []struct {
		name  string
		input []RetrievedMessage
		want  string
	}{
		{
			name:  "empty input",
			input: nil,
			want:  "",
		},
		{
			name: "lone user question",
			input: []RetrievedMessage{
				fm("m1", model.RoleUser, "Quantos pedidos?", "", 1, SourceTextSearch, 0.5),
			},
			want: "HISTORICO_RELEVANTE:\n[PERGUNTA] Quantos pedidos?",
		},
		{
			name: "lone assistant answer",
			input: []RetrievedMessage{
				fm("m1", model.RoleAssistant, "Foram 42 pedidos", "", 2, SourceSemanticSearch, 0.8),
			},
			want: "HISTORICO_RELEVANTE:\n[RESPOSTA] Foram 42 pedidos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatContext(tt.input); got != tt.want {
				t.Errorf("FormatContext() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatContextDeterministic(t *testing.T) {
	input := []RetrievedMessage{
		fm("m3", model.RoleUser, "Quantos clientes?", "", 3, SourceLastInteraction, scoreLastInteractionUser),
		fm("m4", model.RoleAssistant, "150", "SELECT COUNT(*) FROM clientes", 4, SourceLastInteraction, scoreLastInteractionAssistant),
		fm("m1", model.RoleUser, "Qual o faturamento?", "", 1, SourceSemanticSearch, 0.9),
		fm("m2", model.RoleAssistant, "R$ 10.000", "", 2, SourceSemanticSearch, 0.9),
	}

	first := FormatContext(input)
	if second := FormatContext(input); second != first {
		t.Errorf("repeated FormatContext() differs:\n%q\nvs\n%q", first, second)
	}

	// Input order must not matter: the formatter sorts chronologically.
	reversed := []RetrievedMessage{input[3], input[2], input[1], input[0]}
	if got := FormatContext(reversed); got != first {
		t.Errorf("FormatContext() depends on input order:\n%q\nvs\n%q", got, first)
	}
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantSQL  string
		wantRest string
	}{
		{
			name:    "fenced sql block",
			text:    "Resultado: 5 linhas\n```sql\nSELECT * FROM pedidos\n```",
			wantSQL: "SELECT * FROM pedidos",
		},
		{
			name:    "fenced block starting with select",
			text:    "Veja:\n```\nSELECT nome FROM clientes\n```\nFim",
			wantSQL: "SELECT nome FROM clientes",
		},
		{
			name:    "terminated inline statement",
			text:    "Usei SELECT id FROM vendas; para buscar",
			wantSQL: "SELECT id FROM vendas;",
		},
		{
			name:    "trailing statement without terminator",
			text:    "A consulta foi SELECT total FROM caixa",
			wantSQL: "SELECT total FROM caixa",
		},
		{
			name:    "with clause",
			text:    "```sql\nWITH t AS (SELECT 1) SELECT * FROM t\n```",
			wantSQL: "WITH t AS (SELECT 1) SELECT * FROM t",
		},
		{
			name:    "no sql present",
			text:    "Não há dados para essa pergunta",
			wantSQL: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _ := extractSQL(tt.text)
			if sql != tt.wantSQL {
				t.Errorf("extractSQL() sql = %q, want %q", sql, tt.wantSQL)
			}
		})
	}
}

func TestRenderLineExplicitSQLWins(t *testing.T) {
	assistant := &model.ChatMessage{
		Role:     model.RoleAssistant,
		Content:  "Resultado: 10\n```sql\nSELECT errado FROM x\n```",
		SQLQuery: "SELECT certo FROM y",
	}

	got := renderLine("Pergunta?", assistant)
	want := "[PERGUNTA] Pergunta? -> [RESPOSTA] Resultado: 10 -> [QUERYSQL] SELECT certo FROM y"
	if got != want {
		t.Errorf("renderLine() = %q, want %q", got, want)
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "strips fenced block",
			text: "Antes\n```\ncodigo\n```\nDepois",
			want: "Antes Depois",
		},
		{
			name: "drops query sql utilizada line",
			text: "Resposta final\nQuery SQL Utilizada: SELECT 1",
			want: "Resposta final",
		},
		{
			name: "drops separators and timing",
			text: "---\nResultado: 42\n=====\n⏱ Tempo de execução: 1.2s",
			want: "Resultado: 42",
		},
		{
			name: "collapses whitespace",
			text: "muito    espaço\n\n\naqui",
			want: "muito espaço aqui",
		},
		{
			name: "empty after cleaning",
			text: "```\nsomente codigo\n```",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeText(tt.text); got != tt.want {
				t.Errorf("sanitizeText(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
