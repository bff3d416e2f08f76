/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package k8sdisc

import "k8s.io/apimachinery/pkg/api/resource"

// pressureRatio divides usage by capacity, reporting ok=false when
// capacity is unknown or zero rather than propagating +Inf/NaN into a
// prometheus gauge.
func pressureRatio(usage, capacity *resource.Quantity) (ratio float64, ok bool) {
	if usage == nil || capacity == nil {
		return 0, false
	}
	c := capacity.AsApproximateFloat64()
	if c <= 0 {
		return 0, false
	}
	return usage.AsApproximateFloat64() / c, true
}
