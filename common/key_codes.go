package common

// KeyCode is a keyboard key. Values match GLFW key codes, which use ASCII for printable keys.
type KeyCode int

const (
	KeyA     KeyCode = 65
	KeyD     KeyCode = 68
	KeyE     KeyCode = 69
	KeyQ     KeyCode = 81
	KeyS     KeyCode = 83
	KeyW     KeyCode = 87
	KeySpace KeyCode = 32
	KeyEsc   KeyCode = 256
	KeyRight KeyCode = 262
	KeyLeft  KeyCode = 263
	KeyDown  KeyCode = 264
	KeyUp    KeyCode = 265

	// KeyMinus and KeyEqual adjust tone-map exposure in the demos.
	KeyMinus KeyCode = 45
	KeyEqual KeyCode = 61
)
