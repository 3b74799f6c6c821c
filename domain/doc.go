// Package domain provee los modelos y la lógica de negocio pura de Mirror.
//
// Mirror coordina la replicación de trades entre una terminal master y una o
// más terminales receiver. Este paquete contiene exclusivamente lógica pura
// (sin I/O): resolución de símbolos, clasificación de sesiones, cálculo de
// riesgo, hashing de configuración y las interfaces de repositorio que el
// Core implementa sobre PostgreSQL.
//
// # Organización
//
//   - models.go: entidades (Account, TradeEvent, ExecutionRecord, etc.)
//   - errors.go: taxonomía de errores CopyError
//   - symbols.go: resolver de alias de símbolos entre brokers
//   - sessions.go: clasificador de sesiones de trading
//   - risk_calculator.go: cálculo de lotes por modo de riesgo
//   - confighash.go: hash estable de snapshots de configuración
//   - repository.go: interfaces de persistencia
//
// # Principios
//
//   - Las funciones de este paquete son deterministas y sin efectos.
//   - Toda operación con I/O vive en internal/ y recibe context.Context.
//   - Los datos de referencia (grupos de alias, tabla de sesiones default)
//     son inmutables y se cargan una sola vez al inicio del proceso.
package domain
