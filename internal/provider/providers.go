package provider

// This file explicitly imports all provider implementation packages.
// The blank identifier (_) ensures that the init() function of each package runs,
// allowing them to register themselves with the central provider registry.

import (
	_ "bucketdeck/pkg/storage/aws"
	_ "bucketdeck/pkg/storage/azure"
	_ "bucketdeck/pkg/storage/gcp"
	_ "bucketdeck/pkg/storage/minio"
)
