// README: Ingestion payload validation and normalization.
package submission

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"taxifare/internal/modules/geo"
	"taxifare/internal/modules/pricing"
)

const (
	minRequestIDLen = 8
	maxRequestIDLen = 128
	maxLabelLen     = 200
	maxVehicleLen   = 30
	maxDriverIDLen  = 128
	maxETASeconds   = 86400
)

// validated is a SubmitCommand that passed validation, normalized.
type validated struct {
	clientRequestID string
	cmd             SubmitCommand
	startLabel      *string
	endLabel        *string
	timeOfDay       pricing.TimeOfDay
	traffic         pricing.TrafficLevel
	vehicleType     *string
	driverID        string
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

func validate(cmd SubmitCommand, policy Policy) (validated, error) {
	v := validated{cmd: cmd, traffic: pricing.TrafficMedium}

	v.clientRequestID = strings.TrimSpace(cmd.ClientRequestID)
	if n := utf8.RuneCountInString(v.clientRequestID); n < minRequestIDLen || n > maxRequestIDLen {
		return validated{}, invalid("client_request_id must be %d-%d characters", minRequestIDLen, maxRequestIDLen)
	}
	if !geo.ValidPoint(cmd.Start) {
		return validated{}, invalid("start must have lat in [-90,90] and lng in [-180,180]")
	}
	if !geo.ValidPoint(cmd.End) {
		return validated{}, invalid("end must have lat in [-90,90] and lng in [-180,180]")
	}

	var err error
	if v.startLabel, err = label("start_label", cmd.StartLabel); err != nil {
		return validated{}, err
	}
	if v.endLabel, err = label("end_label", cmd.EndLabel); err != nil {
		return validated{}, err
	}

	if v.timeOfDay, err = pricing.ParseTimeOfDay(strings.TrimSpace(cmd.TimeOfDay)); err != nil {
		return validated{}, invalid("%v", err)
	}
	if cmd.TrafficLevel != nil {
		v.traffic = pricing.TrafficLevel(*cmd.TrafficLevel)
		if !v.traffic.Valid() {
			return validated{}, invalid("traffic_level must be an integer 1-3")
		}
	}
	if cmd.ETASeconds != nil && (*cmd.ETASeconds < 0 || *cmd.ETASeconds > maxETASeconds) {
		return validated{}, invalid("eta_s must be between 0 and %d", maxETASeconds)
	}
	if cmd.Price < policy.PriceMin || cmd.Price > policy.PriceMax {
		return validated{}, invalid("price must be an integer between %d and %d", policy.PriceMin, policy.PriceMax)
	}

	if vt := strings.ToLower(strings.TrimSpace(cmd.VehicleType)); vt != "" {
		if utf8.RuneCountInString(vt) > maxVehicleLen {
			return validated{}, invalid("vehicle_type must be at most %d characters", maxVehicleLen)
		}
		v.vehicleType = &vt
	}

	v.driverID = strings.TrimSpace(cmd.DriverID)
	if utf8.RuneCountInString(v.driverID) > maxDriverIDLen {
		return validated{}, invalid("driver_id must be at most %d characters", maxDriverIDLen)
	}
	return v, nil
}

func label(field string, raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*raw)
	if n := utf8.RuneCountInString(s); n < 1 || n > maxLabelLen {
		return nil, invalid("%s must be 1-%d characters", field, maxLabelLen)
	}
	return &s, nil
}
