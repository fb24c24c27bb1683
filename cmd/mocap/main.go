// Command mocap replays VR motion-capture recordings.
package main

import "github.com/tessro/mocap/internal/cli"

func main() {
	cli.Execute()
}
