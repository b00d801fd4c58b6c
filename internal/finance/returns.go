package finance

// ComputeReturns derives simple period-over-period returns from an aligned
// price matrix: r[t] = p[t]/p[t-1] - 1 per asset column. A return is missing
// when either price is missing. The first row never has a return and is
// always dropped; which other rows survive depends on policy.
func ComputeReturns(prices *Frame, policy MissingPolicy) *Frame {
	if prices == nil || prices.Len() < 2 || len(prices.columns) == 0 {
		var cols []AssetID
		if prices != nil {
			cols = prices.columns
		}
		return NewFrame(nil, cols)
	}

	n := prices.Len()
	full := NewFrame(prices.index, prices.columns)
	for _, c := range prices.columns {
		src, dst := prices.cells[c], full.cells[c]
		for t := 1; t < n; t++ {
			cur, ok1 := src[t].Float()
			prev, ok2 := src[t-1].Float()
			switch {
			case !ok1 || !ok2:
				dst[t] = Missing()
			case prev == 0:
				dst[t] = Undefined()
			default:
				dst[t] = Number(cur/prev - 1)
			}
		}
	}

	keep := make([]int, 0, n-1)
	for t := 1; t < n; t++ {
		valid := 0
		for _, c := range full.columns {
			if full.cells[c][t].Valid() {
				valid++
			}
		}
		switch policy {
		case PreserveMissing:
			if valid > 0 {
				keep = append(keep, t)
			}
		default:
			if valid == len(full.columns) {
				keep = append(keep, t)
			}
		}
	}
	return full.rows(keep)
}

// ComputeCumulative compounds returns per asset from the first row:
// c[t] = prod(1 + r[0..t]) - 1. Missing cells stay missing and leave the
// running product untouched.
func ComputeCumulative(returns *Frame) *Frame {
	if returns == nil {
		return NewFrame(nil, nil)
	}
	out := NewFrame(returns.index, returns.columns)
	for _, c := range returns.columns {
		src, dst := returns.cells[c], out.cells[c]
		growth := 1.0
		for t, v := range src {
			r, ok := v.Float()
			if !ok {
				dst[t] = v
				continue
			}
			growth *= 1 + r
			dst[t] = Number(growth - 1)
		}
	}
	return out
}
