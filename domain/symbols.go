package domain

import (
	"sort"
	"strings"
)

// SymbolAliasGroups agrupa las grafías equivalentes de un mismo instrumento
// entre brokers. Datos de referencia inmutables, cargados una vez al inicio
// del proceso.
//
// Invariante: los grupos son disjuntos bajo normalización — un símbolo
// normalizado pertenece a lo sumo a un grupo. El orden dentro de cada grupo
// es el orden de declaración (se usa como desempate estable).
var SymbolAliasGroups = [][]string{
	{"XAUUSD", "GOLD", "XAU"},
	{"XAGUSD", "SILVER", "XAG"},
	{"EURUSD", "EURUSDM", "EURUSDC"},
	{"GBPUSD", "GBPUSDM", "GBPUSDC"},
	{"USDJPY", "USDJPYM", "USDJPYC"},
	{"USOIL", "WTI", "CRUDEOIL", "OILUSD", "CL"},
	{"UKOIL", "BRENT", "BRENTOIL"},
	{"NAS100", "USTEC", "NDX100", "USNAS100"},
	{"SPX500", "US500", "SP500"},
	{"US30", "DJ30", "DOW30", "DJI30"},
	{"GER40", "DE40", "DAX40", "GER30"},
	{"UK100", "FTSE100"},
	{"JPN225", "JP225", "NIK225"},
	{"BTCUSD", "BITCOIN", "XBTUSD"},
	{"ETHUSD", "ETHEREUM"},
}

// similarityThreshold es el mínimo estricto de score para aceptar un match
// por similitud de caracteres en SuggestBestMatch.
const similarityThreshold = 0.5

// NormalizeSymbol normaliza una grafía de símbolo de broker: mayúsculas,
// quita un sufijo ".cash" (case-insensitive), quita un punto final y elimina
// "/" y "_". Función pura y total; idempotente.
//
// Example:
//
//	NormalizeSymbol("xauusd.cash") // => "XAUUSD"
//	NormalizeSymbol("EUR/USD")     // => "EURUSD"
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimSuffix(s, ".CASH")
	s = strings.TrimSuffix(s, ".")
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

// FindAliasGroup retorna el grupo completo de alias que contiene al símbolo
// (normalizado), o nil si no pertenece a ningún grupo.
func FindAliasGroup(symbol string) []string {
	norm := NormalizeSymbol(symbol)
	if norm == "" {
		return nil
	}
	for _, group := range SymbolAliasGroups {
		for _, alias := range group {
			if alias == norm {
				return group
			}
		}
	}
	return nil
}

// SuggestedSymbols retorna los alias del grupo del símbolo master, excluyendo
// al propio input, ordenados de más corto a más largo (los nombres cortos se
// tratan como más canónicos/comunes). Empates de longitud conservan el orden
// de declaración del grupo.
func SuggestedSymbols(masterSymbol string) []string {
	group := FindAliasGroup(masterSymbol)
	if group == nil {
		return nil
	}

	norm := NormalizeSymbol(masterSymbol)
	suggestions := make([]string, 0, len(group))
	for _, alias := range group {
		if alias != norm {
			suggestions = append(suggestions, alias)
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return len(suggestions[i]) < len(suggestions[j])
	})
	return suggestions
}

// SuggestBestMatch elige el mejor símbolo del receiver para replicar
// masterSymbol, en dos fases:
//
//  1. Match exacto por grupo de alias contra availableSymbols (excluyendo el
//     self-match); gana el primero en el orden dado.
//  2. Fallback por similitud de caracteres contra cada símbolo disponible;
//     se acepta el de mayor score estrictamente por encima del umbral 0.5,
//     con desempate por orden de aparición.
//
// Retorna "" si no hay candidato aceptable. Determinista, sin efectos.
func SuggestBestMatch(masterSymbol string, availableSymbols []string) string {
	masterNorm := NormalizeSymbol(masterSymbol)
	if masterNorm == "" || len(availableSymbols) == 0 {
		return ""
	}

	// Fase 1: match por grupo de alias.
	if group := FindAliasGroup(masterSymbol); group != nil {
		inGroup := make(map[string]bool, len(group))
		for _, alias := range group {
			inGroup[alias] = true
		}
		for _, candidate := range availableSymbols {
			candNorm := NormalizeSymbol(candidate)
			if candNorm == masterNorm {
				continue
			}
			if inGroup[candNorm] {
				return candidate
			}
		}
	}

	// Fase 2: similitud bolsa-de-caracteres. No es edit distance: cuenta
	// cuántos caracteres del string corto aparecen en el largo, sobre la
	// longitud máxima.
	best := ""
	bestScore := similarityThreshold
	for _, candidate := range availableSymbols {
		score := symbolSimilarity(masterNorm, NormalizeSymbol(candidate))
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}

// symbolSimilarity calcula el score de similitud entre dos símbolos
// normalizados: (caracteres del string corto presentes en el largo) /
// max(len(a), len(b)).
func symbolSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	matches := 0
	for _, r := range shorter {
		if strings.ContainsRune(longer, r) {
			matches++
		}
	}

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return float64(matches) / float64(maxLen)
}
