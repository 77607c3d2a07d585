package model

// File is a remote file reference. Only ID is required.
type File struct {
	ID       string
	UniqueID string
	Size     int64
	MimeType string
	Path     string
}

// Image is a file with pixel dimensions.
type Image struct {
	File
	Width  int
	Height int
}

// Area returns the pixel area used to rank size variants.
func (i Image) Area() int64 {
	return int64(i.Width) * int64(i.Height)
}

// ParseFile parses a bare file object.
func (p Parser) ParseFile(raw map[string]any) (*File, error) {
	f := newFields("file", raw)
	file, err := readFile(f)
	if err != nil {
		return nil, err
	}
	if err := f.finish(p.Strict); err != nil {
		return nil, err
	}

	return &file, nil
}

// ParseImage parses a file object with width and height.
func (p Parser) ParseImage(raw map[string]any) (*Image, error) {
	return p.parseImage("image", raw)
}

func (p Parser) parseImage(path string, raw map[string]any) (*Image, error) {
	f := newFields(path, raw)
	image, err := readImage(f)
	if err != nil {
		return nil, err
	}
	if err := f.finish(p.Strict); err != nil {
		return nil, err
	}

	return &image, nil
}

func readFile(f *fields) (File, error) {
	var (
		file File
		err  error
	)

	if file.ID, err = f.string("file_id", true); err != nil {
		return File{}, err
	}
	if file.UniqueID, err = f.string("file_unique_id", false); err != nil {
		return File{}, err
	}
	if file.Size, err = f.int64("file_size", false); err != nil {
		return File{}, err
	}
	if file.MimeType, err = f.string("mime_type", false); err != nil {
		return File{}, err
	}
	if file.Path, err = f.string("file_path", false); err != nil {
		return File{}, err
	}

	return file, nil
}

func readImage(f *fields) (Image, error) {
	file, err := readFile(f)
	if err != nil {
		return Image{}, err
	}

	width, err := f.int64("width", true)
	if err != nil {
		return Image{}, err
	}
	height, err := f.int64("height", true)
	if err != nil {
		return Image{}, err
	}

	return Image{File: file, Width: int(width), Height: int(height)}, nil
}

// Photo is a set of resolution variants with the largest cached as Best.
type Photo struct {
	Sizes []Image
	Best  Image
}

func (p Parser) parsePhoto(path string, entries []any) (*Photo, error) {
	if len(entries) == 0 {
		return nil, NewError(ErrorInvariant, path, "photo requires at least one size")
	}

	photo := &Photo{Sizes: make([]Image, 0, len(entries))}
	tied := false
	for i, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil, NewError(ErrorShape, indexPath(path, i), "expected object")
		}
		image, err := p.parseImage(indexPath(path, i), obj)
		if err != nil {
			return nil, err
		}
		photo.Sizes = append(photo.Sizes, *image)

		switch {
		case i == 0 || image.Area() > photo.Best.Area():
			photo.Best = *image
			tied = false
		case image.Area() == photo.Best.Area():
			tied = true
		}
	}

	if tied && p.Strict {
		return nil, NewError(ErrorAmbiguousImage, path, "largest photo sizes share the same area")
	}

	return photo, nil
}
