package trend

// olsFit runs an ordinary-least-squares regression of y against the bar
// index 0..n-1 and returns the slope (price units per bar) and R².
func olsFit(y []float64) (slope, r2 float64) {
	n := len(y)
	if n < 2 {
		return 0, 0
	}

	xMean := float64(n-1) / 2.0
	var yMean float64
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)

	var num, den float64
	for i, v := range y {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0, 0
	}
	slope = num / den
	intercept := yMean - slope*xMean

	var ssTot, ssRes float64
	for i, v := range y {
		yHat := intercept + slope*float64(i)
		ssTot += (v - yMean) * (v - yMean)
		ssRes += (v - yHat) * (v - yHat)
	}
	if ssTot == 0 {
		return slope, 0
	}
	return slope, 1.0 - ssRes/ssTot
}
