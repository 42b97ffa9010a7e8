package rpc

import (
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/adpc/internal/allocate"
	"github.com/danielpatrickdp/adpc/internal/errs"
	"github.com/danielpatrickdp/adpc/internal/fingerprint"
	"github.com/danielpatrickdp/adpc/internal/partition"
)

// #region field-access
func stringField(s *structpb.Struct, name string) (string, bool) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", false
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return str.StringValue, true
}

func requireString(s *structpb.Struct, name string) (string, error) {
	str, ok := stringField(s, name)
	if !ok {
		return "", errs.Invalid("field %q must be a string", name)
	}
	return str, nil
}

// intField reads an optional integral number. ok is false when absent.
func intField(s *structpb.Struct, name string) (n int, ok bool, err error) {
	v, present := s.GetFields()[name]
	if !present {
		return 0, false, nil
	}
	num, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, false, errs.Invalid("field %q must be a number", name)
	}
	f := num.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > 1<<31 {
		return 0, false, errs.Invalid("field %q must be an integer, got %v", name, f)
	}
	return int(f), true, nil
}

func numberField(s *structpb.Struct, name string) (float64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, errs.Invalid("field %q is required", name)
	}
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, errs.Invalid("field %q must be a number", name)
	}
	return num.NumberValue, nil
}
// #endregion field-access

// #region fingerprint-wire
func fingerprintValue(v fingerprint.Fingerprint) *structpb.Value {
	items := make([]*structpb.Value, len(v))
	for i, x := range v {
		items[i] = structpb.NewNumberValue(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: items})
}

func fingerprintFrom(v *structpb.Value) (fingerprint.Fingerprint, error) {
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, errs.Invalid("fingerprint must be a list of numbers")
	}
	out := make(fingerprint.Fingerprint, len(list.ListValue.GetValues()))
	for i, item := range list.ListValue.GetValues() {
		num, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, errs.Invalid("fingerprint element %d is not a number", i)
		}
		out[i] = num.NumberValue
	}
	return out, nil
}

func regionsValue(ids []partition.RegionID) *structpb.Value {
	items := make([]*structpb.Value, len(ids))
	for i, id := range ids {
		items[i] = structpb.NewStringValue(string(id))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: items})
}

func regionsFrom(v *structpb.Value) []partition.RegionID {
	var out []partition.RegionID
	for _, item := range v.GetListValue().GetValues() {
		out = append(out, partition.RegionID(item.GetStringValue()))
	}
	return out
}
// #endregion fingerprint-wire

// #region decision-wire
func decisionValue(d allocate.Decision) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"key":              structpb.NewStringValue(d.Key),
		"involved_count":   structpb.NewNumberValue(float64(d.InvolvedCount)),
		"created_count":    structpb.NewNumberValue(float64(d.CreatedCount)),
		"action":           structpb.NewStringValue(string(d.Action)),
		"exposure_count":   structpb.NewNumberValue(float64(d.ExposureCount)),
		"complexity":       structpb.NewNumberValue(d.Complexity),
		"raw_score":        structpb.NewNumberValue(d.RawScore),
		"growth_threshold": structpb.NewNumberValue(float64(d.GrowthThreshold)),
	}})
}

func decisionFrom(v *structpb.Value) allocate.Decision {
	f := v.GetStructValue().GetFields()
	return allocate.Decision{
		Key:             f["key"].GetStringValue(),
		InvolvedCount:   int(f["involved_count"].GetNumberValue()),
		CreatedCount:    int(f["created_count"].GetNumberValue()),
		Action:          allocate.Action(f["action"].GetStringValue()),
		ExposureCount:   int64(f["exposure_count"].GetNumberValue()),
		Complexity:      f["complexity"].GetNumberValue(),
		RawScore:        f["raw_score"].GetNumberValue(),
		GrowthThreshold: int(f["growth_threshold"].GetNumberValue()),
	}
}
// #endregion decision-wire
