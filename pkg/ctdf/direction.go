package ctdf

type Direction int

const (
	DirectionDown Direction = iota
	DirectionUp
)

func (d Direction) String() string {
	if d == DirectionUp {
		return "up"
	}

	return "down"
}

func DirectionFromUp(up bool) Direction {
	if up {
		return DirectionUp
	}

	return DirectionDown
}

func ParseDirection(value string) (Direction, bool) {
	switch value {
	case "up", "1":
		return DirectionUp, true
	case "down", "0":
		return DirectionDown, true
	}

	return DirectionDown, false
}
