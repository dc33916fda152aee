package banner

import "fmt"

const Version = "1.0.0"

func Print() {
	banner := `
    ___                    __     __  __      __
   /   | ____ ____  ____  / /_   / / / /_  __/ /_
  / /| |/ __  / _ \/ __ \/ __/  / /_/ / / / / __ \
 / ___ / /_/ /  __/ / / / /_   / __  / /_/ / /_/ /
/_/  |_\__, /\___/_/ /_/\__/  /_/ /_/\__,_/_.___/
      /____/  v%s - Agent Message Hub
    `
	fmt.Printf(banner, Version)
	fmt.Println("\n------------------------------------------------")
}
