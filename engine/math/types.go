package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/**
 * @brief a 4x4 matrix, typically used to represent object transformations.
 * Elements are stored row by row and vectors are treated as rows, so a
 * point is transformed as v * M and translation lives in Data[12..14].
 */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/** @brief A 3x3 matrix, stored row by row like Mat4. */
type Mat3 struct {
	Data [9]float32
}

/** @brief A linear RGBA colour with float components, usually in [0, 1]. */
type Color struct {
	R, G, B, A float32
}

/** @brief An integer rectangle, used for viewports and scissor boxes. */
type Rect struct {
	X, Y          int32
	Width, Height int32
}

/** @brief An integer 2d size. */
type Size struct {
	Width, Height uint32
}
