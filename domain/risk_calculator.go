package domain

import "math"

// SizingInput agrupa los insumos del cálculo de lote del receiver: el modo
// configurado, los datos de intención del evento master y el estado propio
// del receiver.
type SizingInput struct {
	Mode  RiskMode
	Value float64 // Semántica según el modo: factor, lote, dólares o porcentaje

	MasterLots float64
	EntryPrice float64

	// ReceiverBalance es el balance del receiver; requerido por los modos
	// risk_percent e intent.
	ReceiverBalance float64

	Intent *IntentData
}

// ComputeReceiverLots calcula el lote que el receiver debe ejecutar para un
// evento del master, según su modo de riesgo. Función pura: sin I/O, sin
// estado oculto; el dispatch por modo es un tagged variant, no subclassing.
//
// Retorna ErrInvalidIntentData cuando el modo necesita datos de intención y
// faltan o son inválidos (p.ej. risk_pips <= 0).
func ComputeReceiverLots(in SizingInput) (float64, error) {
	if !in.Mode.Valid() {
		return 0, NewValidationError("risk_mode", string(in.Mode), "unknown risk mode")
	}
	if in.Value <= 0 {
		return 0, NewValidationError("risk_value", in.Value, "risk value must be positive")
	}

	switch in.Mode {
	case RiskModeBalanceMultiplier:
		return computeBalanceMultiplier(in)
	case RiskModeFixedLot:
		return in.Value, nil
	case RiskModeRiskDollar:
		return computeRiskDollar(in, in.Value)
	case RiskModeRiskPercent:
		if in.ReceiverBalance <= 0 {
			return 0, NewError(ErrInvalidIntentData, "receiver balance required for risk_percent mode")
		}
		return computeRiskDollar(in, in.ReceiverBalance*in.Value/100.0)
	case RiskModeIntent:
		return computeIntent(in)
	}

	return 0, NewValidationError("risk_mode", string(in.Mode), "unknown risk mode")
}

func computeBalanceMultiplier(in SizingInput) (float64, error) {
	if in.MasterLots <= 0 {
		return 0, NewValidationError("master_lots", in.MasterLots, "master lot size must be positive")
	}
	return in.MasterLots * in.Value, nil
}

// computeRiskDollar resuelve lots tal que lots × risk_pips × pip_value ==
// riskDollars.
func computeRiskDollar(in SizingInput, riskDollars float64) (float64, error) {
	if in.Intent == nil {
		return 0, NewError(ErrInvalidIntentData, "intent data required for risk-based sizing")
	}
	if in.Intent.RiskPips <= 0 {
		return 0, NewError(ErrInvalidIntentData, "risk_pips must be positive")
	}
	if in.Intent.PipValue <= 0 {
		return 0, NewError(ErrInvalidIntentData, "pip_value must be positive")
	}

	lots := riskDollars / (in.Intent.RiskPips * in.Intent.PipValue)
	if lots <= 0 || math.IsInf(lots, 0) || math.IsNaN(lots) {
		return 0, NewError(ErrInvalidIntentData, "computed lot size is not positive")
	}
	return lots, nil
}

// computeIntent recalcula el lote desde el precio de invalidación y la
// economía del instrumento, sin copiar el lote del master. Value se
// interpreta como porcentaje del balance del receiver a arriesgar.
//
// Riesgo por lote = |entry − invalidation| × contract_size; si el broker no
// reporta contract_size se usa risk_pips × tick_value como aproximación.
func computeIntent(in SizingInput) (float64, error) {
	if in.Intent == nil {
		return 0, NewError(ErrInvalidIntentData, "intent data required for intent mode")
	}
	if in.ReceiverBalance <= 0 {
		return 0, NewError(ErrInvalidIntentData, "receiver balance required for intent mode")
	}
	if in.Intent.InvalidationPrice <= 0 {
		return 0, NewError(ErrInvalidIntentData, "invalidation_price must be positive")
	}
	if in.EntryPrice <= 0 {
		return 0, NewError(ErrInvalidIntentData, "entry price must be positive")
	}

	distance := math.Abs(in.EntryPrice - in.Intent.InvalidationPrice)
	if distance <= 0 {
		return 0, NewError(ErrInvalidIntentData, "entry and invalidation prices must differ")
	}

	var perLotRisk float64
	switch {
	case in.Intent.ContractSize > 0:
		perLotRisk = distance * in.Intent.ContractSize
	case in.Intent.RiskPips > 0 && in.Intent.TickValue > 0:
		perLotRisk = in.Intent.RiskPips * in.Intent.TickValue
	default:
		return 0, NewError(ErrInvalidIntentData, "contract_size or risk_pips/tick_value required for intent mode")
	}

	riskDollars := in.ReceiverBalance * in.Value / 100.0
	lots := riskDollars / perLotRisk
	if lots <= 0 || math.IsInf(lots, 0) || math.IsNaN(lots) {
		return 0, NewError(ErrInvalidIntentData, "computed lot size is not positive")
	}
	return lots, nil
}

// SlippagePips traduce la diferencia executed − requested a pips, dado el
// tamaño de pip del instrumento. Se registra en el ledger de ejecuciones
// para evaluar max_slippage_pips y para reporting.
func SlippagePips(requestedPrice, executedPrice, pipSize float64) float64 {
	if pipSize <= 0 {
		return 0
	}
	return (executedPrice - requestedPrice) / pipSize
}
