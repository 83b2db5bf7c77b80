//go:build unix && !linux

package subreaper

func Set() error {
	return ErrUnsupported
}

func Get() (bool, error) {
	return false, ErrUnsupported
}
