package project

type Vector2 struct {
	X float64
	Y float64
}

type Vector3 struct {
	X float64
	Y float64
	Z float64
}

func NewVector3(xy Vector2, z float64) Vector3 {
	return Vector3{X: xy.X, Y: xy.Y, Z: z}
}

func (self Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: self.X + o.X, Y: self.Y + o.Y, Z: self.Z + o.Z}
}

func (self Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: self.X - o.X, Y: self.Y - o.Y, Z: self.Z - o.Z}
}

func (self Vector3) XY() Vector2 {
	return Vector2{X: self.X, Y: self.Y}
}
