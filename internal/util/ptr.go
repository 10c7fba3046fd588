package util

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

func Int64Ptr(v int64) *int64 { return &v }

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
