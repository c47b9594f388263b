package tshark

import "nidwatch/internal/normalize"

// Fields are the tshark field names requested with -e, in column order.
var Fields = []string{
	normalize.FieldTimeEpoch,
	normalize.FieldIPSrc,
	normalize.FieldIPDst,
	normalize.FieldIPv6Src,
	normalize.FieldIPv6Dst,
	normalize.FieldFrameLen,
}

// fieldArgs builds the argument list for reading path.
// -T fields with a header row, tab separator (values may contain commas),
// first occurrence only for repeated fields and double-quoted values.
func fieldArgs(path string) []string {
	args := []string{"-r", path, "-n", "-T", "fields"}
	for _, f := range Fields {
		args = append(args, "-e", f)
	}
	return append(args,
		"-E", "header=y",
		"-E", "separator=/t",
		"-E", "occurrence=f",
		"-E", "quote=d",
	)
}
