package guess

// archiveHeaderLen covers the magic numbers of the verified archives.
const archiveHeaderLen = 8

// ArchiveDetector confirms ZIP and 7z archives by opening their directories.
// The whole stream is buffered to reach the trailing directory,
// so the detector runs only when the magic number matches.
// A damaged archive is an error, which lets the following detectors try the magic number alone.
type ArchiveDetector struct {
	Zip      Zip
	SevenZip SevenZip
}

// Interface guards
var _ Detector = (*ArchiveDetector)(nil)

func (ArchiveDetector) Formats() []Format {
	return []Format{FormatZIP, FormatSevenZip}
}

func (d ArchiveDetector) Detect(enabled []Format, src Source) (Identification, error) {
	unknown := Identification{Format: FormatUnknown}

	head, err := readAtMost(src, archiveHeaderLen)
	if err != nil {
		return unknown, err
	}

	switch {
	case contains(enabled, FormatZIP) && d.Zip.matchHeader(head):
		size, err := src.Size()
		if err != nil {
			return unknown, err
		}
		return d.Zip.identify(src, size)

	case contains(enabled, FormatSevenZip) && d.SevenZip.matchHeader(head):
		size, err := src.Size()
		if err != nil {
			return unknown, err
		}
		return d.SevenZip.identify(src, size)
	}

	return unknown, nil
}
