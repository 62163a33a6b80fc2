package workdays

import "time"

var czechFixed = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},
	{time.May, 1},
	{time.May, 8},
	{time.July, 5},
	{time.July, 6},
	{time.September, 28},
	{time.October, 28},
	{time.November, 17},
	{time.December, 24},
	{time.December, 25},
	{time.December, 26},
}

func isCzechHoliday(d time.Time) bool {
	for _, h := range czechFixed {
		if d.Month() == h.month && d.Day() == h.day {
			return true
		}
	}
	easter := easterSunday(d.Year())
	if d.Equal(easter.AddDate(0, 0, 1)) {
		return true
	}
	// Good Friday has been a public holiday since 2016.
	return d.Year() >= 2016 && d.Equal(easter.AddDate(0, 0, -2))
}

// easterSunday uses the anonymous Gregorian algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
