// Package semconv centraliza las claves de atributos OTel que Mirror usa en
// logs, métricas, trazas y spans: las convenciones genéricas (Logs, HTTP,
// Metrics) y las propias del dominio de copiado (Mirror).
//
// Mantener las claves acá evita strings sueltos en los call sites y garantiza
// que la misma dimensión se nombre igual en las tres señales:
//
//	client.Info(ctx, "config snapshot served",
//	    semconv.Logs.Feature.String("ConfigDistribution"),
//	    semconv.Mirror.ConfigHash.String(hash),
//	)
package semconv
