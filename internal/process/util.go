package process

import "os"

func osEnviron() []string {
	return os.Environ()
}
